package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/rotolab/roto/pkg/config"
	"github.com/rotolab/roto/pkg/daemon"
	"github.com/rotolab/roto/pkg/events"
	"github.com/rotolab/roto/pkg/profile"
	"github.com/rotolab/roto/pkg/settings"
)

func (c *Client) GetStatus() (*daemon.Status, error) {
	ret, err := c.Get("/status")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get machine status")
	}

	var st daemon.Status
	if err := json.Unmarshal([]byte(ret), &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal machine status: %w", err)
	}

	return &st, nil
}

// PressKey injects one keypad symbol (0-9, A-D, *, #) as if it were
// pressed on the front panel.
func (c *Client) PressKey(key string) (string, error) {
	payload, err := json.Marshal(key)
	if err != nil {
		return "", err
	}
	return c.Put("/key", string(payload))
}

func (c *Client) Start() (string, error) {
	return c.Post("/start", "")
}

func (c *Client) Stop() (string, error) {
	return c.Post("/stop", "")
}

func (c *Client) SetPreheat(enabled bool) (string, error) {
	return c.Post("/preheat", strconv.FormatBool(enabled))
}

func (c *Client) SetTime(minutes, seconds int) (string, error) {
	payload, err := json.Marshal(daemon.TimeRequest{
		Minutes: minutes,
		Seconds: seconds,
	})
	if err != nil {
		return "", err
	}
	return c.Put("/time", string(payload))
}

func (c *Client) SelectProfile(id int) (string, error) {
	return c.Put("/profile", strconv.Itoa(id))
}

func (c *Client) GetProfiles() ([]profile.Profile, error) {
	ret, err := c.Get("/profiles")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get profiles")
	}

	var profiles []profile.Profile
	if err := json.Unmarshal([]byte(ret), &profiles); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal profiles")
	}

	return profiles, nil
}

func (c *Client) GetSettings() (*settings.Settings, error) {
	ret, err := c.Get("/settings")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get settings")
	}

	var s settings.Settings
	if err := json.Unmarshal([]byte(ret), &s); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal settings")
	}

	return &s, nil
}

func (c *Client) GetConfig() (*config.RawFileConfig, error) {
	ret, err := c.Get("/config")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get config")
	}

	var conf config.RawFileConfig
	if err := json.Unmarshal([]byte(ret), &conf); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal config")
	}

	return &conf, nil
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get version")
	}
	// Remove "" around JSON string. I don't want to use a JSON decoder just for this.
	ret = ret[1 : len(ret)-1] // remove the surrounding quotes
	return ret, nil
}

// PreheatSchedule is the GET /preheat-schedule response.
type PreheatSchedule struct {
	Expression string    `json:"expression"`
	NextRun    time.Time `json:"nextRun"`
	Running    bool      `json:"running"`
}

func (c *Client) GetPreheatSchedule() (*PreheatSchedule, error) {
	ret, err := c.Get("/preheat-schedule")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get preheat schedule")
	}

	var sched PreheatSchedule
	if err := json.Unmarshal([]byte(ret), &sched); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal preheat schedule")
	}

	return &sched, nil
}

// SetPreheatSchedule installs a cron expression for unattended preheats.
// An empty expression clears the schedule.
func (c *Client) SetPreheatSchedule(expr string) (string, error) {
	payload, err := json.Marshal(expr)
	if err != nil {
		return "", err
	}
	return c.Put("/preheat-schedule", string(payload))
}

func (c *Client) PostponePreheat(minutes int) (string, error) {
	return c.Post("/preheat-postpone", strconv.Itoa(minutes))
}

func (c *Client) SkipPreheat() (string, error) {
	return c.Post("/preheat-skip", "")
}

// Events subscribes to the daemon's SSE stream. The returned channel is
// closed when the context is canceled or the stream ends.
func (c *Client) Events(ctx context.Context) (<-chan events.Event, error) {
	body, err := c.Stream(ctx, "/events")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to subscribe to events")
	}

	ch := make(chan events.Event, 16)
	go func() {
		defer close(ch)
		defer func() { _ = body.Close() }()

		var ev events.Event
		scanner := bufio.NewScanner(body)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			switch {
			case strings.HasPrefix(line, "event:"):
				ev.Name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				ev.Data = []byte(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
			case line == "":
				// Blank line terminates one SSE message.
				if ev.Name != "" {
					select {
					case ch <- ev:
					case <-ctx.Done():
						return
					}
				}
				ev = events.Event{}
			}
		}
	}()

	return ch, nil
}
