package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rotolab/roto/pkg/clock"
	"github.com/rotolab/roto/pkg/config"
	"github.com/rotolab/roto/pkg/dispatch"
	"github.com/rotolab/roto/pkg/events"
	"github.com/rotolab/roto/pkg/hw"
	"github.com/rotolab/roto/pkg/profile"
	"github.com/rotolab/roto/pkg/settings"
)

var (
	conf    config.Config
	store   *settings.Store
	catalog *profile.Catalog
	hub     *events.Hub
	core    *Core
	sched   *Scheduler
)

func setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))

	router.GET("/status", getStatus)
	router.PUT("/key", putKey)
	router.POST("/start", postStart)
	router.POST("/stop", postStop)
	router.POST("/preheat", postPreheat)
	router.PUT("/time", putTime)
	router.PUT("/profile", putProfile)
	router.GET("/profiles", getProfiles)
	router.GET("/settings", getSettings)
	router.GET("/config", getConfig)
	router.GET("/preheat-schedule", getPreheatSchedule)
	router.PUT("/preheat-schedule", putPreheatSchedule)
	router.POST("/preheat-postpone", postPreheatPostpone)
	router.POST("/preheat-skip", postPreheatSkip)
	router.GET("/events", getEvents)
	router.GET("/version", getVersion)

	return router
}

func Run(configPath string, unixSocketPath string, allowNonRoot bool) error {
	router := setupRoutes()

	var err error
	conf, err = config.NewFile(configPath)
	if err != nil {
		logrus.Fatalf("failed to parse config during startup: %v", err)
	}
	logrus.WithFields(conf.(*config.File).LogrusFields()).Infof("config loaded")

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			if err := conf.Load(); err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			if err := sched.Schedule(conf.PreheatSchedule()); err != nil {
				logrus.Errorf("failed to apply reloaded preheat schedule: %v", err)
			}
			logrus.Infof("config reloaded")
		}
	}()

	store, err = settings.NewStore(conf.SettingsPath())
	if err != nil {
		logrus.Fatalf("failed to open settings store: %v", err)
	}

	catalog, err = profile.LoadWithUser(conf.ProfilesPath())
	if err != nil {
		logrus.Fatalf("failed to load profile catalog: %v", err)
	}
	logrus.WithField("profiles", catalog.Len()).Info("profile catalog loaded")

	board, err := openBoard(conf)
	if err != nil {
		logrus.Fatalf("failed to open machine hardware: %v", err)
	}

	var buzzer *hw.Buzzer
	if pin := conf.BuzzerPin(); pin > 0 {
		buzzer, err = hw.OpenBuzzer(pin)
		if err != nil {
			logrus.WithError(err).Warn("gpio buzzer unavailable, falling back to board beeper")
			buzzer = nil
		}
	}

	hub = events.NewHub()
	src := clock.NewWall()
	core = NewCore(board, store, catalog, hub, buzzer, src.Now())

	sched = NewScheduler(scheduledPreheatTask, scheduledPreheatPreCheck,
		publishScheduleUpcoming, publishScheduleError)
	sched.Start()
	if expr := conf.PreheatSchedule(); expr != "" {
		if err := sched.Schedule(expr); err != nil {
			logrus.Errorf("failed to apply preheat schedule: %v", err)
		}
	}

	srv := &http.Server{
		Handler: router,
	}

	// A stale socket from an unclean shutdown would block the listen.
	if err := os.Remove(unixSocketPath); err != nil && !os.IsNotExist(err) {
		logrus.Fatal(err)
	}
	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		logrus.Fatal(err)
	}

	if conf.AllowNonRootAccess() || allowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", unixSocketPath)
		if err := os.Chmod(unixSocketPath, 0777); err != nil {
			logrus.Fatal(err)
		}
	}

	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	loopCtx, cancelLoop := context.WithCancel(context.Background())
	go core.RunLoop(loopCtx, src)

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	cancel()

	logrus.Info("stopping scheduler")
	sched.Stop()

	logrus.Info("stopping control loop")
	cancelLoop()
	core.Shutdown()

	if err := buzzer.Close(); err != nil {
		logrus.Errorf("failed to close buzzer: %v", err)
	}

	logrus.Info("closing machine hardware")
	if err := board.Close(); err != nil {
		logrus.Errorf("failed to close board: %v", err)
	}

	logrus.Info("exiting")
	return nil
}

func openBoard(conf config.Config) (hw.Board, error) {
	if conf.Simulate() {
		logrus.Info("running against the simulated machine")
		sim := hw.NewSimBoard(220)
		go func() {
			t := time.NewTicker(100 * time.Millisecond)
			defer t.Stop()
			for range t.C {
				sim.StepPlant(100)
			}
		}()
		return sim, nil
	}
	b := hw.NewSerialBoard(conf.SerialPort(), conf.BaudRate())
	if err := b.Connect(); err != nil {
		return nil, err
	}
	return b, nil
}

// scheduledPreheatTask starts a preheat exactly as the keypad would.
func scheduledPreheatTask() error {
	var cmdErr error
	err := core.Do(func(now clock.Ticks) {
		fx, err := core.disp.CommandPreheat(now, true)
		if err != nil {
			cmdErr = err
			return
		}
		core.applyEffects(fx, now)
	})
	if err != nil {
		return err
	}
	return cmdErr
}

// scheduledPreheatPreCheck refuses to fire while the machine is busy or
// the driving probe is dead: the scheduler retries for a while, then
// drops the occurrence.
func scheduledPreheatPreCheck() error {
	var cmdErr error
	err := core.Do(func(now clock.Ticks) {
		if core.disp.Mode() != dispatch.ModeIdle {
			cmdErr = dispatch.ErrNotIdle
			return
		}
		r := core.board.Readings()
		if !r.Tank.Valid && !r.Bath.Valid {
			cmdErr = errors.New("no usable temperature probe")
		}
	})
	if err != nil {
		return err
	}
	return cmdErr
}
