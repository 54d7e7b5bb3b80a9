package rtctoken

import (
	"strings"
	"testing"
	"time"
)

func TestChannelName(t *testing.T) {
	if got := ChannelName(42); got != "consultation_42" {
		t.Errorf("channel = %q", got)
	}
	// same consultation, same channel, regardless of who asks
	if ChannelName(7) != ChannelName(7) {
		t.Error("channel name not deterministic")
	}
}

func TestConfigured(t *testing.T) {
	if NewBuilder("", "", time.Hour).Configured() {
		t.Error("empty builder reports configured")
	}
	if NewBuilder("app", "", time.Hour).Configured() {
		t.Error("builder without certificate reports configured")
	}
	if !NewBuilder("app", "cert", time.Hour).Configured() {
		t.Error("full builder reports unconfigured")
	}
}

func TestBuild(t *testing.T) {
	b := NewBuilder("970CA35de60c44645bbae8a215061b33", "5CFd2fd1755d40ecb72977518be15d3b", time.Hour)
	token, uid, channel, err := b.Build(42, 10)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}
	// version prefix followed by the app id, then the signed payload
	if !strings.HasPrefix(token, "006970CA35de60c44645bbae8a215061b33") {
		t.Errorf("token = %q, want 006<app id> prefix", token)
	}
	if uid != 10 || channel != "consultation_42" {
		t.Errorf("uid = %d channel = %q", uid, channel)
	}
}
