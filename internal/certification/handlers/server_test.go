package handlers

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gartstein/certify/internal/certification/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func insecureDial() []grpc.DialOption {
	return []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
}

func TestServer_RegisterHTTPGateway(t *testing.T) {
	logger := zaptest.NewLogger(t)
	s := NewServer(50151, 8151, logger)
	h := NewCertificationHandler(&mockController{}, logger)

	err := s.RegisterHTTPGateway(context.Background(), h, insecureDial(), "secret", prometheus.NewRegistry())
	require.NoError(t, err)
	assert.NotNil(t, s.httpServer.Handler)
	assert.Equal(t, s.httpEndpoint, s.httpServer.Addr)
	require.NoError(t, s.conn.Close())
}

func TestServer_StartStop(t *testing.T) {
	logger := zaptest.NewLogger(t)
	s := NewServer(50152, 8152, logger)

	reg := prometheus.NewRegistry()
	metrics.New(reg).Submitted()

	h := NewCertificationHandler(&mockController{}, logger)
	require.NoError(t, s.RegisterHTTPGateway(context.Background(), h, insecureDial(), "secret", reg))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start()
	}()

	base := "http://localhost:8152"
	client := &http.Client{Timeout: time.Second}
	get := func(path string) (int, string) {
		resp, err := client.Get(base + path)
		if err != nil {
			return 0, ""
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body)
	}

	require.Eventually(t, func() bool {
		code, _ := get("/healthz")
		return code == http.StatusOK
	}, 3*time.Second, 50*time.Millisecond, "health endpoint never reported serving")

	code, body := get("/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "certify_certifications_submitted_total 1")

	code, _ = get("/v1/certifications")
	assert.Equal(t, http.StatusUnauthorized, code)

	s.Stop()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for server to stop")
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", 50152))
	require.NoError(t, err, "gRPC port still bound after shutdown")
	lis.Close()
}
