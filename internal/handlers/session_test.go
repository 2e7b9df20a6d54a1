package handlers

import "testing"

func TestNormalizeTimeOfDay(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"08:00", "08:00:00"},
		{"08:00:30", "08:00:30"},
		{" 23:15 ", "23:15:00"},
		{"8:00", ""},
		{"08-00-00", ""},
		{"", ""},
		{"nonsense", ""},
		{"ab:cd:ef", ""},
		{"ab:cd", ""},
		{"24:00:00", ""},
		{"12:60:00", ""},
		{"12:00:61", ""},
	}

	for _, tt := range tests {
		if got := normalizeTimeOfDay(tt.in); got != tt.want {
			t.Errorf("normalizeTimeOfDay(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGeofenceRadius(t *testing.T) {
	lat, lon, radius, def := 1.23, 4.56, 250.0, defaultRadiusMeters

	tests := []struct {
		name          string
		lat, lon, rad *float64
		want          *float64
	}{
		{"no geofence at all", nil, nil, nil, nil},
		{"explicit radius kept", &lat, &lon, &radius, &radius},
		{"coordinates default the radius", &lat, &lon, nil, &def},
		{"radius alone passes through", nil, nil, &radius, &radius},
		{"partial coordinates stay unfenced", &lat, nil, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := geofenceRadius(tt.lat, tt.lon, tt.rad)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Fatalf("got %v, want %v", *got, *tt.want)
			}
		})
	}
}
