// Command shadow_compare replays slot discovery against this service and the
// legacy scheduler side by side during the cutover and reports every date
// where the two disagree on free start times.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

type slotsPayload struct {
	Data struct {
		Date  string   `json:"date"`
		Times []string `json:"times"`
	} `json:"data"`
}

type comparison struct {
	TeacherID string
	Date      string
	NewTimes  []string
	OldTimes  []string
	Err       error
}

func (c comparison) match() bool {
	if c.Err != nil {
		return false
	}
	if len(c.NewTimes) != len(c.OldTimes) {
		return false
	}
	for i := range c.NewTimes {
		if c.NewTimes[i] != c.OldTimes[i] {
			return false
		}
	}
	return true
}

func main() {
	var (
		newBase    string
		legacyBase string
		teachers   string
		days       int
		duration   int
		timeout    time.Duration
	)

	flag.StringVar(&newBase, "new-base", "http://localhost:8080", "New booking API base URL")
	flag.StringVar(&legacyBase, "legacy-base", "http://localhost:3000", "Legacy scheduler base URL")
	flag.StringVar(&teachers, "teachers", "", "Comma-separated teacher IDs to compare")
	flag.IntVar(&days, "days", 7, "Days ahead to compare, starting today")
	flag.IntVar(&duration, "duration", 0, "Slot duration in minutes (0 = service default)")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	teacherIDs := splitIDs(teachers)
	if len(teacherIDs) == 0 {
		log.Fatal("at least one teacher ID is required (-teachers)")
	}

	client := &http.Client{Timeout: timeout}
	var diffs int

	for _, teacherID := range teacherIDs {
		for i := 0; i < days; i++ {
			date := time.Now().AddDate(0, 0, i).Format("2006-01-02")
			comp := compare(client, newBase, legacyBase, teacherID, date, duration)
			if comp.match() {
				continue
			}
			diffs++
			if comp.Err != nil {
				fmt.Printf("DIFF %s %s: %v\n", teacherID, date, comp.Err)
				continue
			}
			fmt.Printf("DIFF %s %s:\n  new:    %s\n  legacy: %s\n",
				teacherID, date, strings.Join(comp.NewTimes, ","), strings.Join(comp.OldTimes, ","))
		}
	}

	fmt.Printf("Compared %d teachers over %d days, diffs: %d\n", len(teacherIDs), days, diffs)
	if diffs > 0 {
		os.Exit(1)
	}
}

func compare(client *http.Client, newBase, legacyBase, teacherID, date string, duration int) comparison {
	comp := comparison{TeacherID: teacherID, Date: date}

	newTimes, err := fetchSlots(client, newBase, teacherID, date, duration)
	if err != nil {
		comp.Err = fmt.Errorf("new api: %w", err)
		return comp
	}
	oldTimes, err := fetchSlots(client, legacyBase, teacherID, date, duration)
	if err != nil {
		comp.Err = fmt.Errorf("legacy api: %w", err)
		return comp
	}

	comp.NewTimes = newTimes
	comp.OldTimes = oldTimes
	return comp
}

func fetchSlots(client *http.Client, base, teacherID, date string, duration int) ([]string, error) {
	endpoint := fmt.Sprintf("%s/api/v1/teachers/%s/slots", strings.TrimRight(base, "/"), url.PathEscape(teacherID))
	query := url.Values{"date": {date}}
	if duration > 0 {
		query.Set("duration", fmt.Sprintf("%d", duration))
	}

	resp, err := client.Get(endpoint + "?" + query.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload slotsPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	return payload.Data.Times, nil
}

func splitIDs(raw string) []string {
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}
