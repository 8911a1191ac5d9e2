package daemon

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rotolab/roto/pkg/clock"
	"github.com/rotolab/roto/pkg/dispatch"
	"github.com/rotolab/roto/pkg/events"
	"github.com/rotolab/roto/pkg/version"
)

func getStatus(c *gin.Context) {
	st, err := core.Snapshot()
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, st)
}

func putKey(c *gin.Context) {
	var key string
	if err := c.BindJSON(&key); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	if len(key) != 1 || !dispatch.Key(key[0]).Valid() {
		err := fmt.Errorf("not a keypad symbol: %q", key)
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	err := core.Do(func(now clock.Ticks) {
		core.applyEffects(core.disp.HandleEvent(dispatch.Key(key[0]), now), now)
	})
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, "ok")
}

func postStart(c *gin.Context) {
	var cmdErr error
	err := core.Do(func(now clock.Ticks) {
		fx, err := core.disp.CommandStartRun(now)
		if err != nil {
			cmdErr = err
			return
		}
		core.applyEffects(fx, now)
	})
	respondCommand(c, err, cmdErr, "run started")
}

func postStop(c *gin.Context) {
	var cmdErr error
	err := core.Do(func(now clock.Ticks) {
		fx, err := core.disp.CommandStop(now)
		if err != nil {
			cmdErr = err
			return
		}
		core.applyEffects(fx, now)
	})
	respondCommand(c, err, cmdErr, "stopped")
}

func postPreheat(c *gin.Context) {
	var on bool
	if err := c.BindJSON(&on); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	var cmdErr error
	err := core.Do(func(now clock.Ticks) {
		fx, err := core.disp.CommandPreheat(now, on)
		if err != nil {
			cmdErr = err
			return
		}
		core.applyEffects(fx, now)
	})
	respondCommand(c, err, cmdErr, fmt.Sprintf("preheat set to %t", on))
}

// TimeRequest is the PUT /time body.
type TimeRequest struct {
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

func putTime(c *gin.Context) {
	var req TimeRequest
	if err := c.BindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	var cmdErr error
	err := core.Do(func(now clock.Ticks) {
		cmdErr = core.disp.CommandSetTime(req.Minutes, req.Seconds)
	})
	respondCommand(c, err, cmdErr, fmt.Sprintf("run time set to %d:%02d", req.Minutes, req.Seconds))
}

func putProfile(c *gin.Context) {
	var id int
	if err := c.BindJSON(&id); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	var cmdErr error
	err := core.Do(func(now clock.Ticks) {
		fx, err := core.disp.CommandSelectProfile(id)
		if err != nil {
			cmdErr = err
			return
		}
		core.applyEffects(fx, now)
	})
	respondCommand(c, err, cmdErr, fmt.Sprintf("active profile set to id %d", id))
}

func getProfiles(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, catalog.All())
}

func getSettings(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, store.Get())
}

func getConfig(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, gin.H{
		"serialPort":         conf.SerialPort(),
		"baudRate":           conf.BaudRate(),
		"settingsPath":       conf.SettingsPath(),
		"profilesPath":       conf.ProfilesPath(),
		"allowNonRootAccess": conf.AllowNonRootAccess(),
		"preheatSchedule":    conf.PreheatSchedule(),
		"buzzerPin":          conf.BuzzerPin(),
		"simulate":           conf.Simulate(),
	})
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}

func putPreheatSchedule(c *gin.Context) {
	var expr string
	if err := c.BindJSON(&expr); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := sched.Schedule(expr); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	conf.SetPreheatSchedule(expr)
	if err := conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	logrus.Infof("set preheat schedule to %q", expr)
	c.IndentedJSON(http.StatusCreated, "ok")
}

func getPreheatSchedule(c *gin.Context) {
	next, running := sched.Status()
	c.IndentedJSON(http.StatusOK, gin.H{
		"expression": conf.PreheatSchedule(),
		"nextRun":    next,
		"running":    running,
	})
}

func postPreheatPostpone(c *gin.Context) {
	var minutes int
	if err := c.BindJSON(&minutes); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := sched.Postpone(time.Duration(minutes) * time.Minute); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("postponed by %d minutes", minutes))
}

func postPreheatSkip(c *gin.Context) {
	if err := sched.Skip(); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, "skipped")
}

func getEvents(c *gin.Context) {
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, string(ev.Data))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// respondCommand maps the two error layers of a loop-routed command: the
// transport into the loop, then the command itself.
func respondCommand(c *gin.Context, loopErr, cmdErr error, okMsg string) {
	if loopErr != nil {
		c.IndentedJSON(http.StatusInternalServerError, loopErr.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, loopErr)
		return
	}
	if cmdErr != nil {
		c.IndentedJSON(http.StatusConflict, cmdErr.Error())
		_ = c.AbortWithError(http.StatusConflict, cmdErr)
		return
	}
	logrus.Info(okMsg)
	c.IndentedJSON(http.StatusCreated, okMsg)
}

func publishScheduleUpcoming(data any) {
	runAt, _ := data.(time.Time)
	hub.Publish(events.PreheatUpcoming, events.PreheatUpcomingEvent{
		RunAt: runAt.Unix(),
		Ts:    time.Now().Unix(),
	})
}

func publishScheduleError(data any) {
	err, _ := data.(error)
	msg := "unknown scheduler error"
	if err != nil {
		msg = err.Error()
	}
	logrus.Warnf("scheduled preheat: %s", msg)
	hub.Publish(events.ScheduleError, events.ScheduleErrorEvent{
		Message: msg,
		Ts:      time.Now().Unix(),
	})
}
