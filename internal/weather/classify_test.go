package weather

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyCode(t *testing.T) {
	cases := []struct {
		code int
		want Condition
	}{
		{200, ConditionThunder},
		{232, ConditionThunder},
		{299, ConditionThunder},
		{300, ConditionDrizzle},
		{321, ConditionDrizzle},
		{400, ConditionOther},
		{499, ConditionOther},
		{500, ConditionRainy},
		{531, ConditionRainy},
		{600, ConditionSnowy},
		{622, ConditionSnowy},
		{701, ConditionFoggy},
		{711, ConditionOther},
		{721, ConditionFoggy},
		{741, ConditionFoggy},
		{781, ConditionOther},
		{800, ConditionClear},
		{801, ConditionCloudy},
		{804, ConditionCloudy},
		{899, ConditionCloudy},
		{900, ConditionStorm},
		{901, ConditionStorm},
		{902, ConditionStorm},
		{903, ConditionOther},
		{904, ConditionOther},
		{905, ConditionStorm},
		{906, ConditionIcy},
		{956, ConditionOther},
		{957, ConditionStorm},
		{962, ConditionStorm},
		{0, ConditionOther},
		{-1, ConditionOther},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyCode(tc.code), "code %d", tc.code)
	}
}

func TestParseLocationType(t *testing.T) {
	assert.Equal(t, LocationGPS, ParseLocationType("GPS"))
	assert.Equal(t, LocationNetwork, ParseLocationType("NETWORK"))
	assert.Equal(t, LocationOther, ParseLocationType("passive"))
	assert.Equal(t, LocationOther, ParseLocationType(""))
}

func TestNewCoordinates(t *testing.T) {
	c, err := NewCoordinates(52.37, 4.89)
	assert.NoError(t, err)
	assert.Equal(t, 52.37, c.Lat)

	_, err = NewCoordinates(90.1, 0)
	assert.Error(t, err)
	_, err = NewCoordinates(0, -180.5)
	assert.Error(t, err)
}
