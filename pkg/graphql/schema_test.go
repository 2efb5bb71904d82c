package graphql

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pingSchema(t *testing.T) graphql.Schema {
	t.Helper()
	schema, err := NewSchema(graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"echo": &graphql.Field{
				Type: graphql.String,
				Args: graphql.FieldConfigArgument{"say": &graphql.ArgumentConfig{Type: graphql.String}},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return p.Args["say"], nil
				},
			},
		},
	}))
	require.NoError(t, err)
	return schema
}

func TestHandlerExecutesQuery(t *testing.T) {
	body := `{"query":"query($s:String){ echo(say:$s) }","variables":{"s":"hi"}}`
	rec := httptest.NewRecorder()
	Handler(pingSchema(t))(rec, httptest.NewRequest(http.MethodPost, "/api/graphql", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"echo":"hi"}}`, rec.Body.String())
}

func TestHandlerRequiresQuery(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler(pingSchema(t))(rec, httptest.NewRequest(http.MethodPost, "/api/graphql", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandlerReportsSyntaxErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler(pingSchema(t))(rec, httptest.NewRequest(http.MethodPost, "/api/graphql", strings.NewReader(`{"query":"{ echo("}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"errors"`)
}
