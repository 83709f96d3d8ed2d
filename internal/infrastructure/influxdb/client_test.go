package influxdb_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-upnp/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-upnp/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/control"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/devicedef"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/gena"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/meta"
)

const testSite = "site-test"

// testConfig matches the influxdb service in docker-compose.yml.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "upnpd-dev-token",
		Org:           "upnpd",
		Bucket:        "upnp",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func connect(t *testing.T) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(context.Background(), testConfig(), testSite)
	if err != nil {
		if os.Getenv("RUN_INTEGRATION") == "" {
			t.Skip("InfluxDB not available, skipping integration test")
		}
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Close always returns nil
	return client
}

// captureErrors records async write failures until the test ends.
func captureErrors(t *testing.T, client *influxdb.Client) func() error {
	t.Helper()
	var writeErr error
	var mu sync.Mutex
	client.SetOnError(func(err error) {
		mu.Lock()
		writeErr = err
		mu.Unlock()
	})
	return func() error {
		client.Flush()
		time.Sleep(100 * time.Millisecond)
		mu.Lock()
		defer mu.Unlock()
		return writeErr
	}
}

func sensorService(t *testing.T) *meta.Service {
	t.Helper()
	devices, err := devicedef.Parse([]byte(`
devices:
  - friendly_name: Hall Sensor
    type: urn:schemas-upnp-org:device:Sensor:1
    manufacturer: Gray Logic
    model_name: GL-T
    services:
      - type: urn:schemas-upnp-org:service:Temperature:1
        id: urn:upnp-org:serviceId:Temperature
        state_variables:
          - {name: CurrentTemperature, datatype: r4, default: "0", send_events: true}
        actions:
          - name: GetTemperature
            arguments:
              - {name: CurrentTemp, direction: out, related_state_variable: CurrentTemperature}
`))
	if err != nil {
		t.Fatalf("devicedef.Parse() error = %v", err)
	}
	return devices[0].Services()[0]
}

func TestConnect(t *testing.T) {
	client := connect(t)

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := influxdb.Connect(context.Background(), cfg, testSite)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"

	_, err := influxdb.Connect(context.Background(), cfg, testSite)
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestHealthCheck_Cancelled(t *testing.T) {
	client := connect(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := client.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() should fail with a cancelled context")
	}
}

func TestWriteStateChange(t *testing.T) {
	svc := sensorService(t)
	v, err := gena.NewStateVariableValue(svc.StateVariable("CurrentTemperature"), 21.5)
	if err != nil {
		t.Fatal(err)
	}

	client := connect(t)
	wait := captureErrors(t, client)

	client.WriteStateChange(svc, []gena.StateVariableValue{v}, time.Now())

	if err := wait(); err != nil {
		t.Errorf("write error = %v", err)
	}
}

func TestWriteInvocation(t *testing.T) {
	svc := sensorService(t)
	inv := control.NewInvocation(svc.Action("GetTemperature"))
	failed := control.NewInvocation(svc.Action("GetTemperature"))
	failed.SetFailure(control.NewActionError(control.ActionFailed, "sensor offline"))

	client := connect(t)
	wait := captureErrors(t, client)

	client.WriteInvocation("soap", inv, 3*time.Millisecond)
	client.WriteInvocation("mqtt", failed, 40*time.Millisecond)

	if err := wait(); err != nil {
		t.Errorf("write error = %v", err)
	}
}

func TestClose(t *testing.T) {
	svc := sensorService(t)
	client := connect(t)

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close() = %v, want ErrNotConnected", err)
	}

	// Writes after Close are dropped.
	client.WriteInvocation("soap", control.NewInvocation(svc.Action("GetTemperature")), time.Millisecond)
}

func TestClose_Unconnected(t *testing.T) {
	client := &influxdb.Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}
