package factory

import (
	"context"
	"fmt"
	"net"
	"os"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/gerritevents/gerrit-events/internal/common"
	"github.com/gerritevents/gerrit-events/internal/config"
	"github.com/gerritevents/gerrit-events/internal/log"
)

// CreateSSHClientConfig builds the client configuration of the ssh upstream.
// Keys are taken from KeyFile and, when UseAgent is set, from the agent listening on SSH_AUTH_SOCK.
func CreateSSHClientConfig(conf config.SSH) (*ssh.ClientConfig, common.CloseFunc, error) {
	closers := common.Closers{}

	signers := []ssh.Signer{}

	if conf.KeyFile != "" {
		pem, err := os.ReadFile(conf.KeyFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read key file %s: %w", conf.KeyFile, err)
		}

		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse key file %s: %w", conf.KeyFile, err)
		}

		signers = append(signers, signer)
	}

	if conf.UseAgent {
		socket := os.Getenv("SSH_AUTH_SOCK")
		if socket == "" {
			return nil, nil, fmt.Errorf("ssh agent requested but SSH_AUTH_SOCK is not set")
		}

		agentConn, err := net.Dial("unix", socket)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to ssh agent: %w", err)
		}

		closers.Add(common.CloseFuncOf(agentConn.Close))

		agentSigners, err := agent.NewClient(agentConn).Signers()
		if err != nil {
			_ = agentConn.Close()

			return nil, nil, fmt.Errorf("failed to list ssh agent keys: %w", err)
		}

		signers = append(signers, agentSigners...)
	}

	if len(signers) == 0 {
		return nil, nil, fmt.Errorf("no ssh key: set keyFile or useAgent")
	}

	hostKeyCallback, err := createHostKeyCallback(conf.KnownHostsFile)
	if err != nil {
		_ = closers.Close(context.Background())

		return nil, nil, err
	}

	ret := &ssh.ClientConfig{
		User:            conf.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signers...)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         conf.Timeout,
	}

	return ret, closers.Close, nil
}

func createHostKeyCallback(knownHostsFile string) (ssh.HostKeyCallback, error) {
	if knownHostsFile == "" {
		log.Logger().Info("No known hosts file configured, the upstream host key is not verified")

		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec
	}

	ret, err := knownhosts.New(knownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts %s: %w", knownHostsFile, err)
	}

	return ret, nil
}
