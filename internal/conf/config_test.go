package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", s.Database.Driver)
	assert.Equal(t, 2*time.Second, s.Capture.RetryInterval.Std())
	assert.Equal(t, 80, s.Capture.JPEGQuality)
	assert.Equal(t, 5, s.Vision.ProcessEvery)
	assert.Equal(t, 120*time.Second, s.Fusion.FireWindow.Std())
	assert.Equal(t, 75*time.Second, s.Fusion.FireCooldown.Std())
	assert.Equal(t, 45*time.Second, s.Fusion.IntruderCooldown.Std())
	assert.Equal(t, 180*time.Second, s.Nodes.OfflineAfter.Std())
	assert.Equal(t, DefaultReminderSchedule, s.Notify.ReminderSchedule)
	assert.False(t, s.MQTT.Enabled)
}

func TestLoadConfigFileOverrides(t *testing.T) {
	path := writeConfig(t, `
capture:
  retryinterval: 5s
  jpegquality: 60
fusion:
  firewindow: 90s
notify:
  reminderschedule: ["0s", "30s", "120s"]
`)
	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, s.Capture.RetryInterval.Std())
	assert.Equal(t, 60, s.Capture.JPEGQuality)
	assert.Equal(t, 90*time.Second, s.Fusion.FireWindow.Std())
	require.Len(t, s.Notify.ReminderSchedule, 3)
	assert.Equal(t, Duration(30*time.Second), s.Notify.ReminderSchedule[1])
}

func TestLoadClampsUnsafeValues(t *testing.T) {
	path := writeConfig(t, `
capture:
  retryinterval: 1ms
  jpegquality: 400
notify:
  pollinterval: 500ms
  failretry: 2h
`)
	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 200*time.Millisecond, s.Capture.RetryInterval.Std())
	assert.Equal(t, 100, s.Capture.JPEGQuality)
	assert.Equal(t, 2*time.Second, s.Notify.PollInterval.Std())
	assert.Equal(t, 600*time.Second, s.Notify.FailRetry.Std())
}

func TestNormalizeSchedule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []Duration
		want []Duration
	}{
		{
			name: "unsorted with duplicates",
			in:   []Duration{Duration(60 * time.Second), 0, Duration(60 * time.Second), Duration(30 * time.Second)},
			want: []Duration{0, Duration(30 * time.Second), Duration(60 * time.Second)},
		},
		{
			name: "negatives dropped",
			in:   []Duration{Duration(-1 * time.Second), Duration(10 * time.Second)},
			want: []Duration{Duration(10 * time.Second)},
		},
		{
			name: "empty falls back to default",
			in:   nil,
			want: DefaultReminderSchedule,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizeSchedule(tt.in))
		})
	}
}

func TestNormalizeNodeID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{"cam_outdoor", "cam_outdoor"},
		{"CAM OUTDOOR", "cam_outdoor"},
		{"Cam-Outside", "cam_outdoor"},
		{"mq2 living room", "mq2_living"},
		{"MQ2_Kitchen", "mq2_living"},
		{"door_node", "door_force"},
		{"DoorForce", "door_force"},
		{"!!!", ""},
		{"", ""},
		{"unregistered_node", "unregistered_node"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeNodeID(tt.raw), "raw=%q", tt.raw)
	}
}

func TestGetNodeMeta(t *testing.T) {
	t.Parallel()

	meta := GetNodeMeta(NodeCamOutdoor)
	assert.Equal(t, RoomEntrance, meta.Room)
	assert.Equal(t, "camera", meta.Kind)

	unknown := GetNodeMeta("mystery")
	assert.Equal(t, "mystery", unknown.Label)
	assert.Equal(t, "unknown", unknown.Kind)
	assert.Empty(t, unknown.Room)
}

func TestDurationJSONRoundTrip(t *testing.T) {
	t.Parallel()

	d := Duration(90 * time.Second)
	b, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(b))

	var parsed Duration
	require.NoError(t, parsed.UnmarshalJSON(b))
	assert.Equal(t, d, parsed)

	require.NoError(t, parsed.UnmarshalJSON([]byte("null")))
	assert.Equal(t, Duration(0), parsed)

	require.Error(t, parsed.UnmarshalJSON([]byte(`"not-a-duration"`)))
}

// writeConfig writes a temp yaml config and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
