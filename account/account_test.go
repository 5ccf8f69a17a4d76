package account

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elbandito/acmeclient/acmeerrors"
	"github.com/elbandito/acmeclient/core"
	"github.com/elbandito/acmeclient/directory"
	"github.com/elbandito/acmeclient/internal/acmetest"
)

func testDirectory(t *testing.T, newAccountHandler http.HandlerFunc) (*directory.Directory, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)

	mux.HandleFunc("/directory", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(core.Directory{
			NewNonce:   srv.URL + "/new-nonce",
			NewAccount: srv.URL + "/new-account",
			NewOrder:   srv.URL + "/new-order",
		})
	})
	mux.HandleFunc("/new-nonce", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Replay-Nonce", "initial-nonce")
	})
	mux.HandleFunc("/new-account", newAccountHandler)

	dir, err := directory.NewBuilder(srv.URL + "/directory").HTTPClient(srv.Client()).Build(context.Background())
	acmetest.AssertNotError(t, err, "building test directory")
	return dir, srv
}

func TestBuildBindsKidFromLocation(t *testing.T) {
	dir, srv := testDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Replay-Nonce", "next")
		w.Header().Set("Location", "https://example.test/acct/7")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(core.Account{Status: core.AccountStatusValid})
	})
	defer srv.Close()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	acmetest.AssertNotError(t, err, "generating key")

	acct, err := NewBuilder(dir).PrivateKey(key).TermsOfServiceAgreed(true).Build(context.Background())
	acmetest.AssertNotError(t, err, "build account")
	acmetest.AssertEquals(t, acct.Kid, "https://example.test/acct/7")
	acmetest.Assert(t, acct.IsUsable(), "account should be usable")
}

func TestBuildGeneratesDefaultKeyWhenNoneSupplied(t *testing.T) {
	dir, srv := testDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "https://example.test/acct/1")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(core.Account{Status: core.AccountStatusValid})
	})
	defer srv.Close()

	acct, err := NewBuilder(dir).Build(context.Background())
	acmetest.AssertNotError(t, err, "build account with generated key")
	acmetest.Assert(t, acct.Key() != nil, "should have generated a key")
}

func TestBuildFailsWithoutLocationHeader(t *testing.T) {
	dir, srv := testDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(core.Account{Status: core.AccountStatusValid})
	})
	defer srv.Close()

	_, err := NewBuilder(dir).Build(context.Background())
	acmetest.AssertError(t, err, "missing Location header should fail")
}

func TestOnlyReturnExistingSurfacesAccountDoesNotExist(t *testing.T) {
	dir, srv := testDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(core.ProblemDetails{
			Type:   core.ProblemTypeAccountDoesNotExist,
			Detail: "no account exists for this key",
		})
	})
	defer srv.Close()

	_, err := NewBuilder(dir).OnlyReturnExisting(true).Build(context.Background())
	acmetest.AssertError(t, err, "accountDoesNotExist should surface as an error")
	acmetest.Assert(t, acmeerrors.Is(err, acmeerrors.Server), "should be a Server error, not retried")
}
