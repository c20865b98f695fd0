package influxdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smartlight/smartlight-core/internal/infrastructure/config"
)

// Integration tests require a local InfluxDB instance:
//
//	docker run -d -p 8086:8086 influxdb:2
//
// and a token/org/bucket set up. They skip when the server is unreachable.

func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://localhost:8086",
		Token:         "dev-token",
		Org:           "smartlight",
		Bucket:        "device_events",
		BatchSize:     10,
		FlushInterval: 1,
	}
}

func skipIfNoInfluxDB(t *testing.T) *Client {
	t.Helper()

	client, err := Connect(testConfig())
	if err != nil {
		t.Skipf("influxdb not available: %v", err)
	}

	return client
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := Connect(cfg)
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestConnect_UnreachableServer(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://localhost:1" // nothing listens here

	_, err := Connect(cfg)
	if err == nil {
		t.Fatal("expected connection error")
	}
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("expected ErrConnectionFailed, got %v", err)
	}
}

func TestClient_RecordAndFlush(t *testing.T) {
	client := skipIfNoInfluxDB(t)
	defer client.Close() //nolint:errcheck // test cleanup

	var writeErr error
	client.SetOnError(func(err error) {
		writeErr = err
	})

	client.RecordStatus("tok-test", true)
	client.RecordConnection("tok-test", true)
	client.RecordStatus("tok-test", false)
	client.Flush()

	time.Sleep(100 * time.Millisecond)
	if writeErr != nil {
		t.Fatalf("write error: %v", writeErr)
	}
}

func TestClient_HealthCheck(t *testing.T) {
	client := skipIfNoInfluxDB(t)
	defer client.Close() //nolint:errcheck // test cleanup

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("health check failed: %v", err)
	}
}

func TestClient_CloseDisconnects(t *testing.T) {
	client := skipIfNoInfluxDB(t)

	if err := client.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if client.IsConnected() {
		t.Fatal("expected disconnected after close")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}

	// Records after close are silently dropped.
	client.RecordStatus("tok-test", true)
	client.Flush()
}
