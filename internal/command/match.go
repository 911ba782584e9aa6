// Package command pattern-matches transcripts against the built-in
// phrase tables before anything is forwarded to the chat backend.
package command

import "strings"

// Kind identifies which built-in command a transcript resolved to.
type Kind int

const (
	KindNone Kind = iota // no match, forward to the chat backend
	KindTime
	KindSwitchAssistant
	KindRadioStart
	KindRadioStop
	KindDeleteJobs
	KindAlarm
	KindTimer
)

// String returns the kind name for logs.
func (k Kind) String() string {
	switch k {
	case KindTime:
		return "time"
	case KindSwitchAssistant:
		return "switch_assistant"
	case KindRadioStart:
		return "radio_start"
	case KindRadioStop:
		return "radio_stop"
	case KindDeleteJobs:
		return "delete_jobs"
	case KindAlarm:
		return "alarm"
	case KindTimer:
		return "timer"
	}
	return "none"
}

var timePhrases = []string{
	"what time is it",
	"what is the time",
	"what is the current time",
	"what's the time",
	"what's the current time",
	"do you have the time",
	"do you have the current time",
	"do you know the time",
	"do you know the current time",
	"tell me the time",
	"tell me the current time",
	"tell me what time it is",
}

var switchAssistantPhrases = []string{
	"change assistant",
	"switch assistant",
	"change the assistant",
	"switch the assistant",
	"change voice assistant",
	"switch voice assistant",
	"change the voice assistant",
	"switch the voice assistant",
	"change the voice",
	"switch the voice",
	"change voice",
	"switch voice",
	"change your voice",
	"switch your voice",
	"change your name",
	"switch your name",
}

var radioStartPhrases = []string{
	"play the radio",
	"play some radio",
	"turn on the radio",
	"turn the radio on",
	"start the radio",
	"put on the radio",
	"put the radio on",
	"play some music",
	"play music",
}

var radioStopPhrases = []string{
	"stop the radio",
	"turn off the radio",
	"turn the radio off",
	"stop the music",
	"turn off the music",
	"stop playing music",
	"stop playing the radio",
}

var deleteJobsPhrases = []string{
	"delete all alarms",
	"delete all timers",
	"delete the alarm",
	"delete the timer",
	"cancel all alarms",
	"cancel all timers",
	"cancel the alarm",
	"cancel the timer",
	"remove all alarms",
	"remove all timers",
}

var alarmPhrases = []string{
	"set an alarm",
	"set the alarm",
	"set alarm",
	"wake me up at",
	"wake me at",
}

var timerPhrases = []string{
	"set a timer",
	"set the timer",
	"set timer",
	"start a timer",
	"start the timer",
	"start timer",
	"remind me in",
}

// matcher pairs a kind with its phrase table.
type matcher struct {
	kind    Kind
	phrases []string
}

// Order matters: delete-jobs must run before alarm/timer so "delete the
// alarm" never reads as setting one.
var matchers = []matcher{
	{KindTime, timePhrases},
	{KindSwitchAssistant, switchAssistantPhrases},
	{KindRadioStart, radioStartPhrases},
	{KindRadioStop, radioStopPhrases},
	{KindDeleteJobs, deleteJobsPhrases},
	{KindAlarm, alarmPhrases},
	{KindTimer, timerPhrases},
}

// Dispatch resolves a transcript to the first matching command kind.
// Matching is case-insensitive substring containment, list order wins.
func Dispatch(transcript string) Kind {
	normalized := strings.ToLower(strings.TrimSpace(transcript))
	for _, m := range matchers {
		for _, phrase := range m.phrases {
			if strings.Contains(normalized, phrase) {
				return m.kind
			}
		}
	}
	return KindNone
}
