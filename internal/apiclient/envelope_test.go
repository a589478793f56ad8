package apiclient_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/propertyhub/propertyhub/internal/apiclient"
)

func TestUnwrapEnvelopeShapes(t *testing.T) {
	for _, body := range []string{
		`{"data":{"access_token":"t"}}`,
		`{"access_token":"t","message":"Login successful"}`,
		`{"access_token":"t","data":null}`,
	} {
		payload, err := apiclient.UnwrapEnvelope([]byte(body))
		require.NoError(t, err, body)
		require.Equal(t, "t", apiclient.AccessToken(payload), body)
	}

	list, err := apiclient.UnwrapEnvelope([]byte(`{"success":true,"data":[{"id":1}]}`))
	require.NoError(t, err)
	require.JSONEq(t, `[{"id":1}]`, string(list))

	_, err = apiclient.UnwrapEnvelope([]byte("  "))
	require.ErrorIs(t, err, apiclient.ErrEmptyBody)
	_, err = apiclient.UnwrapEnvelope([]byte("{"))
	require.Error(t, err)
}

func TestAPIPath(t *testing.T) {
	require.Equal(t, "/api/v1/login", apiclient.APIPath("/login"))
	require.Equal(t, "/api/v1/admin/users", apiclient.APIPath("admin/users"))
	require.Equal(t, "/tenant/leases", apiclient.APIPath("/tenant/leases"))
	require.Equal(t, "/maintenanceTeam/maintenances", apiclient.APIPath("/maintenanceTeam/maintenances"))
	require.Equal(t, "/api/v1/landlord/properties", apiclient.APIPath("/api/v1/landlord/properties"))
}
