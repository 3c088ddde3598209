package credentialmemory_test

import (
	"testing"

	"github.com/passengerlk/owner-session/pkg/credential"
	"github.com/passengerlk/owner-session/pkg/credential/credentialtest"
	credentialmemory "github.com/passengerlk/owner-session/pkg/credential/memory"
)

func TestStore(t *testing.T) {
	credentialtest.Run(t, func(*testing.T) credential.Store {
		return credentialmemory.NewStore()
	})
}
