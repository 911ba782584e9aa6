package llm

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const fallbackCity = "Miami"

// weatherHint builds the system-prompt line pointing the model at a
// wttr.in JSON feed for the user's approximate location.
func weatherHint() string {
	city := currentCity()
	return fmt.Sprintf(
		"Current and forecast weather json data for (%s) can be found here: http://wttr.in/%s?format=j1. ",
		city, url.QueryEscape(city),
	)
}

// currentCity resolves the city via IP geolocation, falling back to a
// default when offline.
func currentCity() string {
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get("http://ip-api.com/json/")
	if err != nil {
		return fallbackCity
	}
	defer resp.Body.Close()

	var payload struct {
		City string `json:"city"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.City == "" {
		return fallbackCity
	}
	return payload.City
}
