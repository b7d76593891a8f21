//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	repoRootRel = ".."                // relative to ./e2e
	mainPkgRel  = "./cmd/weathersense" // main.go lives in cmd/weathersense
	mqttPort    = nat.Port("1883/tcp")
)

const upstreamBody = `{
  "name": "Hyderabad",
  "weather": [{"description": "light rain", "icon": "10d"}],
  "main": {"temp": 29, "humidity": 80},
  "wind": {"speed": 3.1}
}`

func TestSmoke_ConditionsPublished(t *testing.T) {
	repoRoot := repoRootPath(t)
	brokerHost, brokerPort := startMosquitto(t)
	upstream := startUpstream(t)

	messages := subscribe(t, brokerHost, brokerPort, "e2e/sessions/+/conditions")

	bin := buildBinary(t, repoRoot)
	addr := pickFreeAddr(t)

	cmd := exec.Command(bin)
	cmd.Env = append(os.Environ(),
		"APP_ENV=dev",
		"LOG_LEVEL=debug",
		"HTTP_ADDR="+addr,
		"SQLITE_PATH="+filepath.Join(t.TempDir(), "weathersense.db"),
		"OPENWEATHER_API_KEY=e2e-key",
		"OPENWEATHER_BASE_URL="+upstream.URL,
		"MQTT_BROKER="+brokerHost,
		"MQTT_PORT="+brokerPort,
		"MQTT_CLIENT_ID=weathersense-e2e",
		"MQTT_TOPIC_PREFIX=e2e",
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
	})

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	client := &http.Client{Timeout: 5 * time.Second, Jar: jar}
	base := "http://" + addr

	waitForOK(t, client, base+"/healthz", 15*time.Second)

	resp, err := client.Post(base+"/api/v1/location", "application/json",
		strings.NewReader(`{"latitude":17.385,"longitude":78.4867}`))
	if err != nil {
		t.Fatalf("POST /api/v1/location: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("location status=%d want=%d", resp.StatusCode, http.StatusNoContent)
	}

	resp, err = client.Get(base + "/api/v1/conditions")
	if err != nil {
		t.Fatalf("GET /api/v1/conditions: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("conditions status=%d body=%s", resp.StatusCode, body)
	}

	select {
	case msg := <-messages:
		var payload map[string]any
		if err := json.Unmarshal(msg, &payload); err != nil {
			t.Fatalf("decode mqtt payload: %v", err)
		}
		if payload["category"] != "warm_humid" {
			t.Errorf("category=%v want=warm_humid", payload["category"])
		}
		if payload["location_name"] != "Hyderabad" {
			t.Errorf("location_name=%v want=Hyderabad", payload["location_name"])
		}
		if payload["description"] != "Light Rain" {
			t.Errorf("description=%v want=Light Rain", payload["description"])
		}
	case <-time.After(10 * time.Second):
		t.Fatal("no conditions message published")
	}

	stopServer(t, cmd)
}

func startMosquitto(t *testing.T) (host, port string) {
	t.Helper()
	ctx := context.Background()

	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2",
		Cmd:          []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
		ExposedPorts: []string{string(mqttPort)},
		WaitingFor:   wait.ForListeningPort(mqttPort).WithStartupTimeout(30 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start mosquitto container: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err = c.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	mapped, err := c.MappedPort(ctx, mqttPort)
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}
	return host, mapped.Port()
}

func startUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/weather" || r.URL.Query().Get("appid") != "e2e-key" {
			http.Error(w, `{"cod":401}`, http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, upstreamBody)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func subscribe(t *testing.T, host, port, topic string) <-chan []byte {
	t.Helper()
	out := make(chan []byte, 4)

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%s", host, port)).
		SetClientID("weathersense-e2e-subscriber").
		SetCleanSession(true)
	client := mqtt.NewClient(opts)

	if token := client.Connect(); !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		t.Fatalf("subscriber connect: %v", token.Error())
	}
	t.Cleanup(func() { client.Disconnect(250) })

	token := client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		out <- msg.Payload()
	})
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		t.Fatalf("subscribe %s: %v", topic, token.Error())
	}
	return out
}

func repoRootPath(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	repo := filepath.Clean(filepath.Join(wd, repoRootRel))
	if _, err := os.Stat(filepath.Join(repo, "go.mod")); err != nil {
		t.Fatalf("repo root %q does not contain go.mod: %v", repo, err)
	}

	return repo
}

func buildBinary(t *testing.T, repoRoot string) string {
	t.Helper()

	out := filepath.Join(t.TempDir(), "weathersense")

	build := exec.Command("go", "build", "-o", out, mainPkgRel)
	build.Dir = repoRoot
	build.Env = os.Environ()

	b, err := build.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(b))
	}

	return out
}

func pickFreeAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen :0: %v", err)
	}
	defer ln.Close()

	return ln.Addr().String()
}

func waitForOK(t *testing.T, client *http.Client, url string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server not healthy after %s: %s", timeout, url)
}

func stopServer(t *testing.T, cmd *exec.Cmd) {
	t.Helper()

	_ = cmd.Process.Signal(syscall.SIGTERM)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		t.Fatalf("server did not exit in time")
	case err := <-done:
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				t.Fatalf("server exited non-zero: %v", err)
			}
			t.Fatalf("server wait error: %v", err)
		}
	}
}
