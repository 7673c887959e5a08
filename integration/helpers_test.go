//go:build integration

package integration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/meigma/drive"
	"github.com/meigma/drive/internal/testutil"
	"github.com/meigma/drive/storage/disk"
)

// --- File Server Container Setup ---

// serverFiles are served by the shared file server.
var serverFiles = map[string][]byte{
	"index.html":        []byte("<html>hello</html>"),
	"docs/readme.txt":   []byte("read me"),
	"assets/random.bin": testutil.Pattern(300 << 10),
	"assets/empty.txt":  {},
}

var (
	serverOnce sync.Once
	serverURL  string
	serverErr  error
)

// getFileServer returns the base URL of a shared nginx container serving
// serverFiles, starting it if needed.
func getFileServer(tb testing.TB) string {
	tb.Helper()

	if os.Getenv("SKIP_DOCKER_TESTS") == "1" {
		tb.Skip("SKIP_DOCKER_TESTS is set")
	}

	serverOnce.Do(func() {
		serverURL, serverErr = startFileServer(context.Background())
	})
	if serverErr != nil {
		tb.Fatalf("start file server: %v", serverErr)
	}
	return serverURL
}

// startFileServer starts an nginx container with serverFiles copied into
// its document root.
func startFileServer(ctx context.Context) (string, error) {
	files := make([]testcontainers.ContainerFile, 0, len(serverFiles))
	for name, data := range serverFiles {
		files = append(files, testcontainers.ContainerFile{
			Reader:            bytes.NewReader(data),
			ContainerFilePath: "/usr/share/nginx/html/" + name,
			FileMode:          0o644,
		})
	}

	req := testcontainers.ContainerRequest{
		Image:        "nginx:alpine",
		ExposedPorts: []string{"80/tcp"},
		Files:        files,
		WaitingFor:   wait.ForHTTP("/index.html").WithPort("80/tcp").WithStatusCodeMatcher(isOKStatus),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("start nginx container: %w", err)
	}

	// Container cleanup is handled by the testcontainers reaper.
	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve server host: %w", err)
	}
	port, err := container.MappedPort(ctx, "80/tcp")
	if err != nil {
		return "", fmt.Errorf("resolve server port: %w", err)
	}
	return fmt.Sprintf("http://%s:%s", host, port.Port()), nil
}

func isOKStatus(status int) bool {
	return status >= 200 && status < 300
}

// --- Drive Factories ---

// newDiskDrive returns a drive keeping feed state on disk under a temp dir.
func newDiskDrive(tb testing.TB) *drive.Drive {
	tb.Helper()
	dir, err := disk.New(tb.TempDir())
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = dir.Close() })
	return drive.New(drive.WithStorage(dir.Provider()))
}

// newDiskFiles returns a disk store for materialised files and its root.
func newDiskFiles(tb testing.TB) *disk.Dir {
	tb.Helper()
	dir, err := disk.New(tb.TempDir())
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = dir.Close() })
	return dir
}

// --- TCP Replication ---

// serve accepts connections on a loopback listener and replicates a over
// each until the test ends. It returns the listener address.
func serve(tb testing.TB, a *drive.Archive, opts ...drive.ReplicateOption) string {
	tb.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(tb, err)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	tb.Cleanup(func() {
		cancel()
		_ = ln.Close()
		wg.Wait()
	})

	wg.Go(func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			wg.Go(func() {
				defer conn.Close()
				_ = a.ReplicateConn(ctx, conn, opts...)
			})
		}
	})
	return ln.Addr().String()
}

// dial connects b to the archive served at addr and replicates until the
// test ends or the connection drops.
func dial(tb testing.TB, b *drive.Archive, addr string, opts ...drive.ReplicateOption) {
	tb.Helper()
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	require.NoError(tb, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- b.ReplicateConn(ctx, conn, opts...)
	}()
	tb.Cleanup(func() {
		cancel()
		_ = conn.Close()
		if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
			tb.Logf("replication ended: %v", err)
		}
	})
}
