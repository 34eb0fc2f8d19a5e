package weather

import (
	"fmt"
	"time"
)

// ObservationKey identifies the producer of a record.
type ObservationKey struct {
	ProjectID string `json:"projectId"`
	UserID    string `json:"userId"`
	SourceID  string `json:"sourceId"`
}

func (k ObservationKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.ProjectID, k.UserID, k.SourceID)
}

// Record is the normalized unit handed to a sink: one per successful poll.
type Record struct {
	Key   ObservationKey `json:"key"`
	Value RecordValue    `json:"value"`
}

// RecordValue is the wire form of an Observation. Times are epoch seconds.
type RecordValue struct {
	Time                float64      `json:"time"`
	TimeReceived        float64      `json:"timeReceived"`
	SunRise             *int         `json:"sunRise"`
	SunSet              *int         `json:"sunSet"`
	Temperature         *float64     `json:"temperature"`
	Pressure            *float64     `json:"pressure"`
	Humidity            *float64     `json:"humidity"`
	Cloudiness          *float64     `json:"cloudiness"`
	Precipitation       *float64     `json:"precipitation"`
	PrecipitationPeriod *int         `json:"precipitationPeriod"`
	Condition           Condition    `json:"condition"`
	Source              string       `json:"source"`
	LocationSource      LocationType `json:"locationSource"`
}

// NewRecord assembles the record for obs. source is the provider's fixed
// identifier and locType the tag of the location source that produced the fix.
func NewRecord(key ObservationKey, obs Observation, locType LocationType, source string) Record {
	return Record{
		Key: key,
		Value: RecordValue{
			Time:                epochSeconds(obs.ObservedAt),
			TimeReceived:        epochSeconds(obs.FetchedAt),
			SunRise:             obs.SunRise,
			SunSet:              obs.SunSet,
			Temperature:         obs.TemperatureC,
			Pressure:            obs.PressureHPa,
			Humidity:            obs.HumidityPct,
			Cloudiness:          obs.CloudinessPct,
			Precipitation:       obs.PrecipitationMm,
			PrecipitationPeriod: obs.PrecipitationPeriodHours,
			Condition:           obs.Condition,
			Source:              source,
			LocationSource:      locType,
		},
	}
}

// ObservedAt converts the record's capture time back into a time.Time.
func (r Record) ObservedAt() time.Time {
	return fromEpochSeconds(r.Value.Time)
}

// ReceivedAt converts the record's fetch time back into a time.Time.
func (r Record) ReceivedAt() time.Time {
	return fromEpochSeconds(r.Value.TimeReceived)
}

func fromEpochSeconds(s float64) time.Time {
	sec := int64(s)
	return time.Unix(sec, int64((s-float64(sec))*1e9))
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
