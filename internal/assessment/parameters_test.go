package assessment

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParameterStore_ClampsIntoDomain(t *testing.T) {
	cases := []struct {
		field Field
		value float64
		want  float64
	}{
		{FieldHumidity, 150, 100},
		{FieldHumidity, -3, 0},
		{FieldTemperature, 61, 50},
		{FieldWindSpeed, 500, 120},
		{FieldRainfall, 12.5, 12.5},
		{FieldFFMC, 102, 101},
		{FieldDMC, 250, 200},
		{FieldDC, 1000, 800},
		{FieldDC, math.NaN(), 0},
		{FieldTemperature, math.Inf(1), 50},
	}

	for _, tc := range cases {
		t.Run(string(tc.field), func(t *testing.T) {
			s := NewParameterStore(DefaultParameters())
			got, err := s.Set(tc.field, tc.value)
			require.NoError(t, err)

			v, err := got.Get(tc.field)
			require.NoError(t, err)
			assert.Equal(t, tc.want, v)

			stored, _ := s.Get().Get(tc.field)
			assert.Equal(t, tc.want, stored)
		})
	}
}

func TestParameterStore_SetOnlyTouchesOneField(t *testing.T) {
	s := NewParameterStore(DefaultParameters())
	_, err := s.Set(FieldHumidity, 150)
	require.NoError(t, err)

	want := DefaultParameters()
	want.Humidity = 100
	assert.Equal(t, want, s.Get())
}

func TestParameterStore_UnknownField(t *testing.T) {
	s := NewParameterStore(DefaultParameters())
	_, err := s.Set(Field("pressure"), 1000)
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.Equal(t, DefaultParameters(), s.Get())
}

func TestParameterStore_SeedIsClamped(t *testing.T) {
	s := NewParameterStore(WeatherParameters{Temperature: 90, Humidity: -1, DC: 900})
	p := s.Get()
	assert.Equal(t, 50.0, p.Temperature)
	assert.Equal(t, 0.0, p.Humidity)
	assert.Equal(t, 800.0, p.DC)
}

func TestParameterStore_Update(t *testing.T) {
	s := NewParameterStore(DefaultParameters())
	p, err := s.Update(map[Field]float64{FieldTemperature: 35, FieldRainfall: 400})
	require.NoError(t, err)
	assert.Equal(t, 35.0, p.Temperature)
	assert.Equal(t, 100.0, p.Rainfall)

	_, err = s.Update(map[Field]float64{FieldHumidity: 10, Field("bogus"): 1})
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.Equal(t, p, s.Get(), "a failed batch must not leave a partial update")
}

func TestParameterStore_ConcurrentSetsStayInDomain(t *testing.T) {
	s := NewParameterStore(DefaultParameters())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.Set(FieldWindSpeed, float64(i*10))
			_ = s.Get()
		}(i)
	}
	wg.Wait()

	v := s.Get().WindSpeed
	assert.GreaterOrEqual(t, v, 0.0)
	assert.LessOrEqual(t, v, 120.0)
}

func TestParseField(t *testing.T) {
	f, err := ParseField("windSpeed")
	require.NoError(t, err)
	assert.Equal(t, FieldWindSpeed, f)

	_, err = ParseField("WindSpeed")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestDomains_DisplayOrder(t *testing.T) {
	var names []Field
	for _, d := range Domains() {
		names = append(names, d.Field)
	}
	assert.Equal(t, []Field{
		FieldTemperature, FieldHumidity, FieldWindSpeed, FieldRainfall,
		FieldFFMC, FieldDMC, FieldDC,
	}, names)
}

func TestParseRiskLevel(t *testing.T) {
	lvl, ok := ParseRiskLevel("  extreme ")
	require.True(t, ok)
	assert.Equal(t, RiskExtreme, lvl)

	_, ok = ParseRiskLevel("Severe")
	assert.False(t, ok)

	assert.Less(t, RiskLow.Rank(), RiskModerate.Rank())
	assert.Less(t, RiskModerate.Rank(), RiskHigh.Rank())
	assert.Less(t, RiskHigh.Rank(), RiskExtreme.Rank())
	assert.Equal(t, -1, RiskLevel("high").Rank())
}
