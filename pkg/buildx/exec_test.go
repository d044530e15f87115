package buildx

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/buildhive/buildhive/pkg/types"
)

func testRequest() RegisterRequest {
	return RegisterRequest{
		Name:      "buildhive-test",
		NodeName:  "worker-1",
		Endpoint:  "tcp://10.0.0.5:2376",
		Platforms: []string{"linux/amd64", "linux/arm64"},
		Bundle:    &types.CredentialBundle{Dir: filepath.Join("certs", "buildhive-test", "worker-1")},
	}
}

func TestRegisterArgs_Create(t *testing.T) {
	args := registerArgs(testRequest(), false)

	assert.Equal(t, []string{
		"buildx", "create",
		"--name", "buildhive-test",
		"--node", "worker-1",
		"--driver", "remote",
		"--driver-opt", "cacert=" + filepath.Join("certs", "buildhive-test", "worker-1", "ca.pem") +
			",cert=" + filepath.Join("certs", "buildhive-test", "worker-1", "cert.pem") +
			",key=" + filepath.Join("certs", "buildhive-test", "worker-1", "key.pem"),
		"--platform", "linux/amd64,linux/arm64",
		"tcp://10.0.0.5:2376",
	}, args)
}

func TestRegisterArgs_Append(t *testing.T) {
	args := registerArgs(testRequest(), true)

	assert.Contains(t, args, "--append")
	// The endpoint stays last
	assert.Equal(t, "tcp://10.0.0.5:2376", args[len(args)-1])
}
