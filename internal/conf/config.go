// Package conf resolves the condowatch configuration once at startup and
// hands a single Settings struct to every component. Values come from
// built-in defaults, an optional config.yaml, and CONDOWATCH_* environment
// overrides, in that order of precedence (lowest to highest).
package conf

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings is the resolved configuration for the whole process.
type Settings struct {
	Main     MainSettings     `mapstructure:"main"`
	Database DatabaseSettings `mapstructure:"database"`
	HTTP     HTTPSettings     `mapstructure:"http"`
	Capture  CaptureSettings  `mapstructure:"capture"`
	Vision   VisionSettings   `mapstructure:"vision"`
	Fusion   FusionSettings   `mapstructure:"fusion"`
	Notify   NotifySettings   `mapstructure:"notify"`
	Nodes    NodeSettings     `mapstructure:"nodes"`
	MQTT     MQTTSettings     `mapstructure:"mqtt"`
}

// MainSettings holds process-wide options.
type MainSettings struct {
	LogLevel string `mapstructure:"loglevel"` // debug|info|warn|error
}

// DatabaseSettings selects the event log backend, sqlite or mysql like the
// capture pool's upstream deployments.
type DatabaseSettings struct {
	Driver string `mapstructure:"driver"` // sqlite|mysql
	DSN    string `mapstructure:"dsn"`
}

// HTTPSettings configures the API server.
type HTTPSettings struct {
	Addr          string `mapstructure:"addr"`
	PublicBaseURL string `mapstructure:"publicbaseurl"` // used in notification links, may be empty
}

// CaptureSettings configures the camera capture worker pool.
type CaptureSettings struct {
	OutdoorSource   string   `mapstructure:"outdoorsource"`
	IndoorSource    string   `mapstructure:"indoorsource"`
	RetryInterval   Duration `mapstructure:"retryinterval"`
	JPEGQuality     int      `mapstructure:"jpegquality"`
	StreamFPS       float64  `mapstructure:"streamfps"`
	WarmupFrames    int      `mapstructure:"warmupframes"`
	FailureLogEvery int      `mapstructure:"failurelogevery"`
}

// VisionSettings configures the detection loop.
type VisionSettings struct {
	ProcessEvery       int     `mapstructure:"processevery"`
	UnknownStreak      int     `mapstructure:"unknownstreak"`
	FlameStreak        int     `mapstructure:"flamestreak"`
	UnknownThreshold   float64 `mapstructure:"unknownthreshold"`
	FaceModelPath      string  `mapstructure:"facemodelpath"`
	FlameModelPath     string  `mapstructure:"flamemodelpath"`
	FlameRatioOverride float64 `mapstructure:"flameratiooverride"`
	SnapshotDir        string  `mapstructure:"snapshotdir"`
}

// FusionSettings configures the event fusion rules.
type FusionSettings struct {
	FireWindow          Duration `mapstructure:"firewindow"`
	IntruderWindow      Duration `mapstructure:"intruderwindow"`
	FireCooldown        Duration `mapstructure:"firecooldown"`
	IntruderCooldown    Duration `mapstructure:"intrudercooldown"`
	IntruderMinEvidence int      `mapstructure:"intruderminevidence"`
	DefaultRoom         string   `mapstructure:"defaultroom"`
	GuestMode           bool     `mapstructure:"guestmode"` // initial value, persisted setting wins
}

// NotifySettings configures the notification scheduler.
type NotifySettings struct {
	PollInterval     Duration   `mapstructure:"pollinterval"`
	FailRetry        Duration   `mapstructure:"failretry"`
	ReminderSchedule []Duration `mapstructure:"reminderschedule"`
	RepeatInterval   Duration   `mapstructure:"repeatinterval"`
	SendTimeout      Duration   `mapstructure:"sendtimeout"`
	Channels         []string   `mapstructure:"channels"` // shoutrrr service URLs
}

// NodeSettings configures node health bookkeeping.
type NodeSettings struct {
	OfflineAfter Duration `mapstructure:"offlineafter"`
}

// MQTTSettings configures the sensor event subscriber.
type MQTTSettings struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"clientid"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// DefaultReminderSchedule is used when the configured schedule is empty or
// unparseable.
var DefaultReminderSchedule = []Duration{
	0,
	Duration(60 * time.Second),
	Duration(180 * time.Second),
	Duration(300 * time.Second),
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("main.loglevel", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "condowatch.db")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.publicbaseurl", "")

	v.SetDefault("capture.outdoorsource", "0")
	v.SetDefault("capture.indoorsource", "")
	v.SetDefault("capture.retryinterval", "2s")
	v.SetDefault("capture.jpegquality", 80)
	v.SetDefault("capture.streamfps", 10.0)
	v.SetDefault("capture.warmupframes", 3)
	v.SetDefault("capture.failurelogevery", 10)

	v.SetDefault("vision.processevery", 5)
	v.SetDefault("vision.unknownstreak", 12)
	v.SetDefault("vision.flamestreak", 8)
	v.SetDefault("vision.unknownthreshold", 65.0)
	v.SetDefault("vision.facemodelpath", "models/faces.json")
	v.SetDefault("vision.flamemodelpath", "models/fire_color.json")
	v.SetDefault("vision.flameratiooverride", 0.0)
	v.SetDefault("vision.snapshotdir", "data/snapshots")

	v.SetDefault("fusion.firewindow", "120s")
	v.SetDefault("fusion.intruderwindow", "120s")
	v.SetDefault("fusion.firecooldown", "75s")
	v.SetDefault("fusion.intrudercooldown", "45s")
	v.SetDefault("fusion.intruderminevidence", 2)
	v.SetDefault("fusion.defaultroom", "Living Room")
	v.SetDefault("fusion.guestmode", false)

	v.SetDefault("notify.pollinterval", "5s")
	v.SetDefault("notify.failretry", "60s")
	v.SetDefault("notify.reminderschedule", []string{"0s", "60s", "180s", "300s"})
	v.SetDefault("notify.repeatinterval", "600s")
	v.SetDefault("notify.sendtimeout", "8s")
	v.SetDefault("notify.channels", []string{})

	v.SetDefault("nodes.offlineafter", "180s")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", "condowatch/events")
	v.SetDefault("mqtt.clientid", "condowatch")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
}

// Load resolves settings from defaults, the optional config file, and the
// environment. configPath may be empty, in which case only a config.yaml in
// the working directory is considered, and its absence is not an error.
func Load(configPath string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("condowatch")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !asConfigFileNotFound(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings, viper.DecodeHook(DurationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	normalize(settings)
	return settings, nil
}

// normalize clamps values to safe ranges and fixes up the reminder schedule.
// Out-of-range values are silently clamped rather than rejected, matching
// how a misconfigured deployment should degrade.
func normalize(s *Settings) {
	s.Capture.RetryInterval = s.Capture.RetryInterval.Clamp(200*time.Millisecond, 30*time.Second)
	s.Capture.JPEGQuality = clampInt(s.Capture.JPEGQuality, 1, 100)
	s.Capture.StreamFPS = clampFloat(s.Capture.StreamFPS, 1, 30)
	s.Capture.WarmupFrames = clampInt(s.Capture.WarmupFrames, 0, 30)
	s.Capture.FailureLogEvery = clampInt(s.Capture.FailureLogEvery, 1, 1000)

	s.Fusion.IntruderMinEvidence = clampInt(s.Fusion.IntruderMinEvidence, 1, 3)

	s.Vision.ProcessEvery = clampInt(s.Vision.ProcessEvery, 1, 120)
	s.Vision.UnknownStreak = clampInt(s.Vision.UnknownStreak, 1, 1000)
	s.Vision.FlameStreak = clampInt(s.Vision.FlameStreak, 1, 1000)

	s.Notify.PollInterval = s.Notify.PollInterval.Clamp(2*time.Second, 120*time.Second)
	s.Notify.FailRetry = s.Notify.FailRetry.Clamp(10*time.Second, 600*time.Second)
	s.Notify.RepeatInterval = s.Notify.RepeatInterval.Clamp(30*time.Second, 3600*time.Second)
	s.Notify.SendTimeout = s.Notify.SendTimeout.Clamp(3*time.Second, 30*time.Second)
	s.Notify.ReminderSchedule = NormalizeSchedule(s.Notify.ReminderSchedule)
}

// NormalizeSchedule sorts the reminder schedule, drops negatives and
// duplicates, and falls back to the default schedule when nothing is left.
func NormalizeSchedule(schedule []Duration) []Duration {
	out := make([]Duration, 0, len(schedule))
	for _, d := range schedule {
		if d < 0 {
			continue
		}
		if !slices.Contains(out, d) {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return slices.Clone(DefaultReminderSchedule)
	}
	slices.Sort(out)
	return out
}

func clampInt(v, low, high int) int {
	return min(max(v, low), high)
}

func clampFloat(v, low, high float64) float64 {
	return min(max(v, low), high)
}

func asConfigFileNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	if e, ok := err.(viper.ConfigFileNotFoundError); ok {
		*target = e
		return true
	}
	return false
}
