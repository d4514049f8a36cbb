// Package sandbox produces demo health record datasets for local runs and
// tests. The first records are the demo patients shown by the dashboard;
// the rest are reproducible synthetic records.
package sandbox

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/uhra/uhra/internal/domain/records"
)

// SeedConfig controls the size and layout of a generated dataset.
type SeedConfig struct {
	// SyntheticCount is the number of generated records added after the
	// demo patients.
	SyntheticCount int
	Shape          records.Shape
	Seed           int64
	// Now anchors lastVisit dates. Zero means time.Now.
	Now time.Time
}

// DefaultSeedConfig returns the configuration used by the seed command.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		SyntheticCount: 20,
		Shape:          records.ShapeSequence,
		Seed:           1,
	}
}

// HealthRecord is the document stored per patient.
type HealthRecord struct {
	PatientID  string   `json:"patientId"`
	Name       string   `json:"name"`
	Age        int      `json:"age"`
	BloodGroup string   `json:"bloodGroup"`
	Hospital   string   `json:"hospital"`
	Diagnosis  string   `json:"diagnosis"`
	LastVisit  string   `json:"lastVisit"`
	Vitals     Vitals   `json:"vitals"`
	Allergies  []string `json:"allergies"`
}

type Vitals struct {
	HeartRate     int     `json:"heartRate"`
	BloodPressure string  `json:"bloodPressure"`
	TemperatureC  float64 `json:"temperatureC"`
}

type demoPatient struct {
	id, name, blood, hospital, diagnosis string
	age, daysAgo                         int
}

var demoPatients = []demoPatient{
	{"P1001", "Alicia Gomez", "O+", "City General Hospital", "Hypertension", 42, 5},
	{"P1002", "Marcus Lee", "A-", "Northside Medical Center", "Asthma", 29, 2},
	{"P1003", "Priya Patel", "B+", "St. Mary's Cardiac Institute", "Arrhythmia", 36, 10},
	{"P1004", "James Smith", "AB+", "MetroCare Trauma Center", "Post-operative follow-up", 63, 1},
}

var (
	firstNames  = []string{"Ana", "Ben", "Chen", "Divya", "Emil", "Fatima", "Gus", "Hana", "Ivan", "Jade", "Kofi", "Lena"}
	lastNames   = []string{"Okafor", "Nguyen", "Rossi", "Haddad", "Kowalski", "Tanaka", "Silva", "Moreau", "Singh", "Berg"}
	bloodGroups = []string{"O+", "O-", "A+", "A-", "B+", "B-", "AB+", "AB-"}
	hospitals   = []string{
		"City General Hospital", "Northside Medical Center",
		"St. Mary's Cardiac Institute", "MetroCare Trauma Center",
	}
	diagnoses = []string{"Hypertension", "Asthma", "Type 2 diabetes", "Migraine", "Influenza", "Arrhythmia", "Anemia"}
	allergens = []string{"Penicillin", "Peanuts", "Latex", "Shellfish", "Sulfa drugs"}
)

// Generator produces deterministic health records.
type Generator struct {
	rng *rand.Rand
	now time.Time
}

// NewGenerator returns a generator seeded for reproducibility. If seed is 0
// a time-based seed is chosen.
func NewGenerator(seed int64, now time.Time) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if now.IsZero() {
		now = time.Now()
	}
	return &Generator{rng: rand.New(rand.NewSource(seed)), now: now}
}

func (g *Generator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *Generator) visit(daysAgo int) string {
	return g.now.AddDate(0, 0, -daysAgo).Format("2006-01-02")
}

func (g *Generator) vitals() Vitals {
	return Vitals{
		HeartRate:     55 + g.rng.Intn(50),
		BloodPressure: fmt.Sprintf("%d/%d", 100+g.rng.Intn(50), 60+g.rng.Intn(30)),
		TemperatureC:  float64(360+g.rng.Intn(25)) / 10,
	}
}

func (g *Generator) allergies() []string {
	out := []string{}
	for _, a := range allergens {
		if g.rng.Intn(5) == 0 {
			out = append(out, a)
		}
	}
	return out
}

// Demo returns the dashboard's demo patients as health records.
func (g *Generator) Demo() []HealthRecord {
	out := make([]HealthRecord, 0, len(demoPatients))
	for _, p := range demoPatients {
		out = append(out, HealthRecord{
			PatientID:  p.id,
			Name:       p.name,
			Age:        p.age,
			BloodGroup: p.blood,
			Hospital:   p.hospital,
			Diagnosis:  p.diagnosis,
			LastVisit:  g.visit(p.daysAgo),
			Vitals:     g.vitals(),
			Allergies:  g.allergies(),
		})
	}
	return out
}

// Synthetic returns n generated records with ids P2001, P2002, ...
func (g *Generator) Synthetic(n int) []HealthRecord {
	if n < 0 {
		n = 0
	}
	out := make([]HealthRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, HealthRecord{
			PatientID:  fmt.Sprintf("P%d", 2001+i),
			Name:       g.pick(firstNames) + " " + g.pick(lastNames),
			Age:        1 + g.rng.Intn(95),
			BloodGroup: g.pick(bloodGroups),
			Hospital:   g.pick(hospitals),
			Diagnosis:  g.pick(diagnoses),
			LastVisit:  g.visit(g.rng.Intn(365)),
			Vitals:     g.vitals(),
			Allergies:  g.allergies(),
		})
	}
	return out
}

// Generate builds the dataset document described by cfg.
func Generate(cfg SeedConfig) ([]byte, []HealthRecord, error) {
	if cfg.SyntheticCount < 0 {
		return nil, nil, fmt.Errorf("synthetic record count must not be negative, got %d", cfg.SyntheticCount)
	}
	g := NewGenerator(cfg.Seed, cfg.Now)
	recs := append(g.Demo(), g.Synthetic(cfg.SyntheticCount)...)
	doc, err := Encode(cfg.Shape, recs, g.now)
	if err != nil {
		return nil, nil, err
	}
	return doc, recs, nil
}

// Encode lays records out in the given dataset shape. generatedAt is
// stamped on the wrapped shape.
func Encode(shape records.Shape, recs []HealthRecord, generatedAt time.Time) ([]byte, error) {
	var v interface{}
	switch shape {
	case records.ShapeSequence:
		v = recs
	case records.ShapeKeyedMap:
		v = keyed(recs)
	case records.ShapeWrapped:
		v = map[string]interface{}{
			"generatedAt": generatedAt.UTC().Format(time.RFC3339),
			"records":     keyed(recs),
		}
	default:
		return nil, fmt.Errorf("cannot encode dataset as %s", shape)
	}

	doc, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal dataset: %w", err)
	}
	return doc, nil
}

func keyed(recs []HealthRecord) map[string]HealthRecord {
	m := make(map[string]HealthRecord, len(recs))
	for _, r := range recs {
		m[r.PatientID] = r
	}
	return m
}
