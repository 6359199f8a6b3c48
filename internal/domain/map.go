package domain

import (
	"fmt"
	"time"
)

// statusOK is the upstream envelope code for a successful reading.
const statusOK = 200

// Accepted upstream key spellings per sensor, checked in order. The accented
// Portuguese form is the primary key; plain-ASCII spellings come from older
// station firmware. Aliasing is data, not code paths: adding a spelling here
// is the whole change.
var (
	lastReadingKeys   = []string{"Última Leitura", "Ultima Leitura"}
	temperatureKeys   = []string{"Temperatura"}
	humidityKeys      = []string{"Umidade"}
	pressureKeys      = []string{"Pressão Atmosférica", "Pressao Atmosferica", "Pressao"}
	windSpeedKeys     = []string{"Vento", "Velocidade do Vento"}
	windDirectionKeys = []string{"Direção do Vento", "Direcao do Vento"}
	noiseKeys         = []string{"Ruído", "Ruido"}
	illuminanceKeys   = []string{"Luminosidade", "Iluminancia"}
	rainTotalKeys     = []string{"Chuva", "Chuva Acumulada"}
	pm25Keys          = []string{"PM2.5", "PM25"}
	pm10Keys          = []string{"PM10"}
)

// MapStationRecord converts one upstream payload into the canonical record.
// It is a pure function of its inputs plus the package clock: mapping the
// same payload twice yields identical records.
//
// A nil payload, an empty field set, or an explicit non-200 envelope code
// produces an error record. A payload in the flat legacy shape has no code
// field at all and is accepted on its fields alone.
func MapStationRecord(stationID int, payload *StationPayload) StationRecord {
	if payload == nil || len(payload.Fields) == 0 || (payload.Code != 0 && payload.Code != statusOK) {
		code := "N/A"
		if payload != nil && payload.Code != 0 {
			code = fmt.Sprintf("%d", payload.Code)
		}
		return ErrorRecord(stationID, fmt.Sprintf("Dados inválidos da API (code: %s)", code))
	}

	fields := payload.Fields

	return StationRecord{
		StationID: stationID,
		Name:      DefaultStationName(stationID),
		Timestamp: readingTimestamp(fields),

		Temperature:   ExtractNumber(lookupField(fields, temperatureKeys)),
		Humidity:      ExtractNumber(lookupField(fields, humidityKeys)),
		Pressure:      ExtractNumber(lookupField(fields, pressureKeys)),
		WindSpeed:     ExtractNumber(lookupField(fields, windSpeedKeys)),
		WindDirection: ExtractNumber(lookupField(fields, windDirectionKeys)),
		Noise:         ExtractNumber(lookupField(fields, noiseKeys)),
		Illuminance:   ExtractNumber(lookupField(fields, illuminanceKeys)),
		RainTotal:     ExtractNumber(lookupField(fields, rainTotalKeys)),
		PM25:          ExtractNumber(lookupField(fields, pm25Keys)),
		PM10:          ExtractNumber(lookupField(fields, pm10Keys)),
	}
}

// readingTimestamp resolves the last-reading field. A payload that omits the
// field is still a live reading, so it gets the current time; a field that is
// present but unparseable yields nil so recency is never fabricated.
func readingTimestamp(fields map[string]any) *time.Time {
	raw, ok := presentField(fields, lastReadingKeys)
	if !ok {
		now := clock.Now().UTC()
		return &now
	}
	s, _ := raw.(string)
	return NormalizeTimestamp(s)
}

// lookupField returns the first alias present in fields, or nil.
func lookupField(fields map[string]any, keys []string) any {
	v, _ := presentField(fields, keys)
	return v
}

func presentField(fields map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			return v, true
		}
	}
	return nil, false
}
