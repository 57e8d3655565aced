package transport

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types"
	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// DockerSpawner runs a source's MCP server inside a container built from a
// fixed image, for sources configured with containerized=true. Unlike the
// teacher's general-purpose container.Runtime, this type only does what an
// MCP child needs: create, start, attach stdio, stop, remove.
type DockerSpawner struct {
	Image string

	cli *client.Client
}

// NewDockerSpawner dials the local Docker daemon using the same
// environment-driven negotiation the teacher's container/docker runtime
// uses.
func NewDockerSpawner(image string) (*DockerSpawner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("transport: docker client: %w", err)
	}
	return &DockerSpawner{Image: image, cli: cli}, nil
}

// Spawn runs command+args as the container's entrypoint inside a fresh
// container from Image, with envOverlay passed as container environment
// (the container has no separate "inherited environment" to overlay onto,
// so envOverlay is the complete environment here).
func (s *DockerSpawner) Spawn(command string, args []string, envOverlay map[string]string) (Transport, error) {
	ctx := context.Background()

	env := make([]string, 0, len(envOverlay))
	for k, v := range envOverlay {
		env = append(env, k+"="+v)
	}

	cfg := &dockercontainer.Config{
		Image:        s.Image,
		Entrypoint:   []string{command},
		Cmd:          args,
		Env:          env,
		Tty:          false,
		OpenStdin:    true,
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
	}
	hostCfg := &dockercontainer.HostConfig{AutoRemove: true}

	created, err := s.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	if err != nil {
		return nil, newProcessError("failed to create container", err)
	}

	attachResp, err := s.cli.ContainerAttach(ctx, created.ID, dockercontainer.AttachOptions{
		Stream: true, Stdin: true, Stdout: true, Stderr: true,
	})
	if err != nil {
		return nil, newProcessError("failed to attach to container", err)
	}

	if err := s.cli.ContainerStart(ctx, created.ID, dockercontainer.StartOptions{}); err != nil {
		attachResp.Close()
		return nil, newProcessError("failed to start container", err)
	}

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	go func() {
		defer stdoutW.Close()
		defer stderrW.Close()
		_, _ = stdcopy.StdCopy(stdoutW, stderrW, attachResp.Reader)
	}()

	return &dockerTransport{
		cli:         s.cli,
		containerID: created.ID,
		conn:        attachResp,
		stdin:       &hijackedStdin{conn: attachResp},
		stdout:      stdoutR,
		stderr:      stderrR,
	}, nil
}

// Close releases the Docker client connection.
func (s *DockerSpawner) Close() error { return s.cli.Close() }

type dockerTransport struct {
	cli         *client.Client
	containerID string
	conn        types.HijackedResponse
	stdin       io.WriteCloser
	stdout      io.Reader
	stderr      io.Reader
}

func (t *dockerTransport) Stdin() io.WriteCloser { return t.stdin }
func (t *dockerTransport) Stdout() io.Reader     { return t.stdout }
func (t *dockerTransport) Stderr() io.Reader     { return t.stderr }

func (t *dockerTransport) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), gracePeriod)
	defer cancel()
	t.conn.Close()
	return t.cli.ContainerStop(ctx, t.containerID, dockercontainer.StopOptions{})
}

// hijackedStdin wraps a HijackedResponse's connection as an io.WriteCloser,
// the same trick the teacher's docker runtime uses for interactive exec
// stdin; here it is the container's primary stdin rather than an exec's.
type hijackedStdin struct {
	conn types.HijackedResponse
}

func (h *hijackedStdin) Write(p []byte) (int, error) { return h.conn.Conn.Write(p) }
func (h *hijackedStdin) Close() error {
	h.conn.CloseWrite()
	return nil
}
