package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChannelExternalName(t *testing.T) {
	tests := []struct {
		name   string
		id     MetricID
		window string
		want   string
	}{
		{"plain timer", TimerID("plain"), "", "perflog:type=Timer,name=plain"},
		{"plain with window", StatisticID("plain"), "1d", "perflog:type=Statistic,name=plain,window=1d"},
		{"metric type", MetricID{Name: "m", Type: TypeMetric}, "", "perflog:type=Metric,name=m"},
		{"comma", TimerID("a,b"), "", `perflog:type=Timer,name="a,b"`},
		{"equals", TimerID("a=b"), "", `perflog:type=Timer,name="a=b"`},
		{"colon", TimerID("a:b"), "", `perflog:type=Timer,name="a:b"`},
		{"quote", TimerID(`a"b`), "", `perflog:type=Timer,name="a\"b"`},
		{"star", TimerID("a*b"), "", `perflog:type=Timer,name="a\*b"`},
		{"question", TimerID("a?b"), "", `perflog:type=Timer,name="a\?b"`},
		{"backslash alone is not a trigger", TimerID(`a\b`), "", `perflog:type=Timer,name=a\b`},
		{"backslash escaped when quoted", TimerID(`a\b,c`), "", `perflog:type=Timer,name="a\\b,c"`},
		{"newline escaped when quoted", TimerID("a\nb?"), "", `perflog:type=Timer,name="a\nb\?"`},
		{"dots and spaces", TimerID("SELECT x FROM t.y"), "", "perflog:type=Timer,name=SELECT x FROM t.y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChannelExternalName(DefaultDomain, tt.id, tt.window))
		})
	}
}

func TestChannelExternalName_Deterministic(t *testing.T) {
	id := TimerID("a,b")
	assert.Equal(t, ChannelExternalName("app", id, "1h"), ChannelExternalName("app", id, "1h"))
	assert.NotEqual(t, ChannelExternalName("app", id, "1h"), ChannelExternalName("app", StatisticID("a,b"), "1h"))
	assert.Equal(t, `app:type=Timer,name="a,b",window=1h`, ChannelExternalName("app", id, "1h"))
}

func TestWindowLabel(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{24 * time.Hour, "1d"},
		{48 * time.Hour, "2d"},
		{time.Hour, "1h"},
		{36 * time.Hour, "36h"},
		{time.Minute, "1m"},
		{90 * time.Minute, "90m"},
		{60 * time.Second, "1m"},
		{30 * time.Second, "30s"},
		{90 * time.Second, "90s"},
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Microsecond, "1500000ns"},
		{7, "7ns"},
		{0, "0ns"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WindowLabel(tt.d), "WindowLabel(%v)", tt.d)
	}
}

func TestMetricType_String(t *testing.T) {
	assert.Equal(t, "Timer", TypeTimer.String())
	assert.Equal(t, "Statistic", TypeStatistic.String())
	assert.Equal(t, "Metric", TypeMetric.String())
	assert.Equal(t, "MetricType(9)", MetricType(9).String())
	assert.Equal(t, "Timer/x", TimerID("x").String())
}
