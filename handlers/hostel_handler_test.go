package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterFromQueryDefaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/hostels", nil)

	filter, err := filterFromQuery(r)
	require.NoError(t, err)
	assert.Empty(t, filter.SchoolID)
	assert.Empty(t, filter.Amenities)
	assert.Zero(t, filter.MinPrice)
	assert.Nil(t, filter.Latitude)
	assert.Nil(t, filter.Longitude)
}

func TestFilterFromQueryParsesEverything(t *testing.T) {
	r := httptest.NewRequest("GET",
		"/api/v1/hostels?school_id=sch_1&q=ensuite&min_price=50000&max_price=120000"+
			"&room_type=single&gender=female&amenities=wifi,%20water,&lat=5.65&lng=-0.19&limit=20&offset=40", nil)

	filter, err := filterFromQuery(r)
	require.NoError(t, err)
	assert.Equal(t, "sch_1", filter.SchoolID)
	assert.Equal(t, "ensuite", filter.Query)
	assert.Equal(t, 50000, filter.MinPrice)
	assert.Equal(t, 120000, filter.MaxPrice)
	assert.Equal(t, "single", filter.RoomType)
	assert.Equal(t, "female", filter.GenderPolicy)
	assert.Equal(t, []string{"wifi", "water"}, filter.Amenities)
	assert.Equal(t, 20, filter.Limit)
	assert.Equal(t, 40, filter.Offset)
	require.NotNil(t, filter.Latitude)
	require.NotNil(t, filter.Longitude)
	assert.InDelta(t, 5.65, *filter.Latitude, 1e-9)
	assert.InDelta(t, -0.19, *filter.Longitude, 1e-9)
}

func TestFilterFromQueryRejectsLoneCoordinate(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/hostels?lat=5.65", nil)

	_, err := filterFromQuery(r)
	assert.EqualError(t, err, "lat and lng must be provided together")
}

func TestFilterFromQueryRejectsBadNumbers(t *testing.T) {
	for _, query := range []string{
		"min_price=cheap",
		"max_price=12.5",
		"limit=ten",
		"lat=north&lng=-0.19",
		"lat=5.65&lng=west",
	} {
		r := httptest.NewRequest("GET", "/api/v1/hostels?"+query, nil)
		_, err := filterFromQuery(r)
		assert.Error(t, err, query)
	}
}
