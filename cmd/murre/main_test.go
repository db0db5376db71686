package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrife/murre/config"
	"github.com/stretchr/testify/require"
)

func TestVersion(t *testing.T) {
	var out bytes.Buffer

	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())
	require.Equal(t, "dev\n", out.String())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "murre.yaml")
	require.NoError(t, os.WriteFile(path, []byte("partition_count: 16\nrest_addr: \":7000\"\nmaps: [{name: a}]\n"), 0644))

	require.NoError(t, serveCmd.Flags().Parse([]string{"--config", path, "--grpc-addr", ":7001"}))
	defer func() { configPath, grpcAddr = "", "" }()

	cfg, err := loadConfig(serveCmd)
	require.NoError(t, err)
	require.Equal(t, 16, cfg.PartitionCount)
	require.Equal(t, ":7000", cfg.RESTAddr)
	require.Equal(t, ":7001", cfg.GRPCAddr)
}

func TestServe(t *testing.T) {
	cfg := config.Default()
	cfg.RESTAddr = "127.0.0.1:0"
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.LogLevel = "error"
	cfg.Maps = []config.MapConfig{{Name: "a"}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)

	go func() { done <- serve(ctx, cfg) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatalf("serve did not return after cancel")
	}
}

func TestNewTracerProvider(t *testing.T) {
	provider, err := newTracerProvider("")
	require.NoError(t, err)
	require.NoError(t, provider.Shutdown(context.Background()))

	provider, err = newTracerProvider("http://localhost:14268/api/traces")
	require.NoError(t, err)
	require.NoError(t, provider.Shutdown(context.Background()))
}
