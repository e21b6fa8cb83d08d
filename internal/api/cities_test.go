package api_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/destinations/internal/destination"
)

// ---- create / fetch ----

func TestCreateCity_ThenFetch(t *testing.T) {
	env := buildRouter(t)

	rec := env.do(t, http.MethodPost, "/cities", map[string]string{
		"name": "  Paris ", "country_code": "fr", "currency": "eur",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decodeBody(t, rec)
	id := created["id"].(string)
	assert.Equal(t, "Paris", created["name"])
	assert.Equal(t, "FR", created["country_code"])
	assert.Equal(t, "EUR", created["currency"])
	assert.Equal(t, "http://example.com/cities/"+id, rec.Header().Get("Location"))
	assert.NotEmpty(t, rec.Header().Get("ETag"))

	links := created["_links"].(map[string]any)
	assert.Equal(t, "http://example.com/cities/"+id+"/seasons", links["seasons"].(map[string]any)["href"])
	assert.Equal(t, "PUT", links["update"].(map[string]any)["method"])
	assert.Equal(t, "DELETE", links["delete"].(map[string]any)["method"])

	rec = env.do(t, http.MethodGet, "/cities/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created, decodeBody(t, rec), "fetch must return exactly what create returned")
	assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))
}

func TestCreateCity_Duplicate(t *testing.T) {
	env := buildRouter(t)
	env.createCity(t, "Paris", "FR", "EUR")

	rec := env.do(t, http.MethodPost, "/cities", map[string]string{
		"name": "Paris", "country_code": "fr", "currency": "EUR",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "city already exists", decodeBody(t, rec)["error"])
}

func TestCreateCity_DuplicateIgnoresCase(t *testing.T) {
	env := buildRouter(t)
	env.createCity(t, "Paris", "FR", "EUR")

	rec := env.do(t, http.MethodPost, "/cities", map[string]string{
		"name": "PARIS", "country_code": "FR", "currency": "EUR",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateCity_SameNameOtherCountry(t *testing.T) {
	env := buildRouter(t)
	env.createCity(t, "Paris", "FR", "EUR")
	env.createCity(t, "Paris", "US", "USD")
}

func TestCreateCity_ClientSuppliedID(t *testing.T) {
	env := buildRouter(t)
	id := uuid.NewString()

	rec := env.do(t, http.MethodPost, "/cities", map[string]string{
		"id": strings.ToUpper(id), "name": "Rome", "country_code": "IT", "currency": "EUR",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, id, decodeBody(t, rec)["id"])
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/cities/"+id, nil).Code)

	rec = env.do(t, http.MethodPost, "/cities", map[string]string{
		"id": id, "name": "Milan", "country_code": "IT", "currency": "EUR",
	})
	assert.Equal(t, http.StatusConflict, rec.Code, "an id already in use conflicts")
}

func TestCreateCity_MalformedClientID(t *testing.T) {
	env := buildRouter(t)

	rec := env.do(t, http.MethodPost, "/cities", map[string]string{
		"id": "rome-1", "name": "Rome", "country_code": "IT", "currency": "EUR",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"id"}, detailFields(t, decodeBody(t, rec)))
}

func TestCreateCity_Invalid(t *testing.T) {
	env := buildRouter(t)

	rec := env.do(t, http.MethodPost, "/cities", map[string]string{
		"name": "", "country_code": "FRA", "currency": "E1R",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "validation failed", body["error"])
	assert.ElementsMatch(t, []string{"name", "country_code", "currency"}, detailFields(t, body))
}

func TestGetCity_NotFound(t *testing.T) {
	env := buildRouter(t)

	rec := env.do(t, http.MethodGet, "/cities/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "city not found", decodeBody(t, rec)["error"])
}

func TestGetCity_MalformedID(t *testing.T) {
	env := buildRouter(t)

	rec := env.do(t, http.MethodGet, "/cities/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"id"}, detailFields(t, decodeBody(t, rec)))
}

func TestGetCity_CacheHitSkipsDB(t *testing.T) {
	env := buildRouter(t)
	id := uuid.NewString()
	env.cache.getFn = func(_ context.Context, got string) (*destination.City, error) {
		return &destination.City{ID: got, Name: "Lisbon", CountryCode: "PT", Currency: "EUR"}, nil
	}
	env.repo.err = errors.New("db must not be called")

	rec := env.do(t, http.MethodGet, "/cities/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Lisbon", decodeBody(t, rec)["name"])
}

func TestGetCity_CacheErrorFallsBackToDB(t *testing.T) {
	env := buildRouter(t)
	id := env.createCity(t, "Rome", "IT", "EUR")["id"].(string)

	var stored *destination.City
	env.cache.getFn = func(context.Context, string) (*destination.City, error) {
		return nil, errors.New("redis down")
	}
	env.cache.setFn = func(_ context.Context, c *destination.City, _ int64) error {
		stored = c
		return nil
	}

	rec := env.do(t, http.MethodGet, "/cities/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, stored, "db hit should repopulate the cache")
	assert.Equal(t, id, stored.ID)
}

// ---- conditional requests ----

func TestGetCity_IfNoneMatch(t *testing.T) {
	env := buildRouter(t)
	id := env.createCity(t, "Paris", "FR", "EUR")["id"].(string)

	rec := env.do(t, http.MethodGet, "/cities/"+id, nil)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	rec = env.do(t, http.MethodGet, "/cities/"+id, nil, "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, etag, rec.Header().Get("ETag"), "304 must carry the validator")
	assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))

	rec = env.do(t, http.MethodGet, "/cities/"+id, nil, "If-None-Match", `"stale"`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateCity_IfMatch(t *testing.T) {
	env := buildRouter(t)
	id := env.createCity(t, "Paris", "FR", "EUR")["id"].(string)
	etag := env.do(t, http.MethodGet, "/cities/"+id, nil).Header().Get("ETag")

	rec := env.do(t, http.MethodPut, "/cities/"+id, map[string]string{"name": "Lyon"}, "If-Match", `"stale"`)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	rec = env.do(t, http.MethodGet, "/cities/"+id, nil)
	assert.Equal(t, "Paris", decodeBody(t, rec)["name"], "a failed precondition must not change the city")

	rec = env.do(t, http.MethodPut, "/cities/"+id, map[string]string{"name": "Lyon"}, "If-Match", etag)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Lyon", decodeBody(t, rec)["name"])

	newTag := rec.Header().Get("ETag")
	assert.NotEqual(t, etag, newTag)
	assert.Equal(t, newTag, env.do(t, http.MethodGet, "/cities/"+id, nil).Header().Get("ETag"),
		"PUT and GET must agree on the tag")

	rec = env.do(t, http.MethodPut, "/cities/"+id, map[string]string{"name": "Nice"}, "If-Match", etag)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code, "the old tag is stale after an update")
}

func TestUpdateCity_Unconditional(t *testing.T) {
	env := buildRouter(t)
	id := env.createCity(t, "Paris", "FR", "EUR")["id"].(string)

	rec := env.do(t, http.MethodPut, "/cities/"+id, map[string]string{"currency": "chf"})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "Paris", body["name"], "omitted fields are untouched")
	assert.Equal(t, "CHF", body["currency"])
	assert.Contains(t, env.cache.deleted, id, "update must evict the cached city")
}

func TestUpdateCity_Errors(t *testing.T) {
	env := buildRouter(t)
	paris := env.createCity(t, "Paris", "FR", "EUR")["id"].(string)
	env.createCity(t, "Lyon", "FR", "EUR")

	rec := env.do(t, http.MethodPut, "/cities/"+uuid.NewString(), map[string]string{"name": "X"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPut, "/cities/"+paris, map[string]string{"name": "Lyon"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPut, "/cities/"+paris, map[string]string{"country_code": "F"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"country_code"}, detailFields(t, decodeBody(t, rec)))

	rec = env.do(t, http.MethodPut, "/cities/"+paris, map[string]string{"name": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ---- delete / cascade ----

func TestDeleteCity_CascadesSeasons(t *testing.T) {
	env := buildRouter(t)
	cityID := env.createCity(t, "Paris", "FR", "EUR")["id"].(string)
	seasonID := env.createSeason(t, cityID, "peak", 6, 8)["id"].(string)

	rec := env.do(t, http.MethodDelete, "/cities/"+cityID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Contains(t, env.cache.deleted, cityID)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/cities/"+cityID, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/seasons/"+seasonID, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/cities/"+cityID, nil).Code)
}

// ---- list ----

func seedCities(t *testing.T, env *testEnv, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		env.createCity(t, fmt.Sprintf("City %02d", i), "FR", "EUR")
	}
}

func linkHref(t *testing.T, body map[string]any, rel string) string {
	t.Helper()
	links := body["_links"].(map[string]any)
	link, ok := links[rel].(map[string]any)
	if !ok {
		return ""
	}
	return link["href"].(string)
}

func TestListCities_Pagination(t *testing.T) {
	env := buildRouter(t)
	seedCities(t, env, 5)

	rec := env.do(t, http.MethodGet, "/cities?page=2&limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	data := body["data"].([]any)
	require.Len(t, data, 2)
	assert.Equal(t, "City 02", data[0].(map[string]any)["name"])
	assert.NotNil(t, data[0].(map[string]any)["_links"])

	pagination := body["pagination"].(map[string]any)
	assert.EqualValues(t, 2, pagination["page"])
	assert.EqualValues(t, 2, pagination["limit"])
	assert.EqualValues(t, 5, pagination["total"])
	assert.EqualValues(t, 3, pagination["total_pages"])

	for _, rel := range []string{"self", "first", "prev", "next", "last"} {
		assert.NotEmpty(t, linkHref(t, body, rel), rel)
	}
	assert.Contains(t, linkHref(t, body, "last"), "page=3")
}

func TestListCities_Defaults(t *testing.T) {
	env := buildRouter(t)
	seedCities(t, env, 3)

	body := decodeBody(t, env.do(t, http.MethodGet, "/cities?page=abc&limit=0", nil))
	pagination := body["pagination"].(map[string]any)
	assert.EqualValues(t, 1, pagination["page"])
	assert.EqualValues(t, 20, pagination["limit"])
	assert.Empty(t, linkHref(t, body, "prev"))
	assert.Empty(t, linkHref(t, body, "next"))

	body = decodeBody(t, env.do(t, http.MethodGet, "/cities?limit=1000", nil))
	assert.EqualValues(t, 100, body["pagination"].(map[string]any)["limit"])
}

func TestListCities_Empty(t *testing.T) {
	env := buildRouter(t)

	rec := env.do(t, http.MethodGet, "/cities", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, []any{}, body["data"])
	assert.EqualValues(t, 0, body["pagination"].(map[string]any)["total_pages"])
}

func TestListCities_FiltersPreservedInLinks(t *testing.T) {
	env := buildRouter(t)
	seedCities(t, env, 3)
	env.createCity(t, "Zurich", "CH", "CHF")

	rec := env.do(t, http.MethodGet, "/cities?country_code=fr&search=city&limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.EqualValues(t, 3, body["pagination"].(map[string]any)["total"])

	next, err := url.Parse(linkHref(t, body, "next"))
	require.NoError(t, err)
	assert.Equal(t, "/cities", next.Path)
	assert.Equal(t, "fr", next.Query().Get("country_code"))
	assert.Equal(t, "city", next.Query().Get("search"))
	assert.Equal(t, "2", next.Query().Get("page"))
	assert.False(t, next.Query().Has("currency"), "unset filters are not added")
}

func TestListCities_ETag(t *testing.T) {
	env := buildRouter(t)
	seedCities(t, env, 2)

	rec := env.do(t, http.MethodGet, "/cities", nil)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	notModified := env.do(t, http.MethodGet, "/cities", nil, "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, notModified.Code)
	assert.Equal(t, etag, notModified.Header().Get("ETag"))

	env.createCity(t, "Another", "FR", "EUR")
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/cities", nil, "If-None-Match", etag).Code,
		"a new city changes the collection tag")
}

func TestListCities_ForwardedProto(t *testing.T) {
	env := buildRouter(t)
	env.createCity(t, "Paris", "FR", "EUR")

	rec := env.do(t, http.MethodGet, "/cities", nil, "X-Forwarded-Proto", "https")
	assert.Contains(t, linkHref(t, decodeBody(t, rec), "self"), "https://example.com/cities?")
}
