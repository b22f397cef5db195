// Package galaxy seeds sector economies for headless runs. It stands in for
// the game's galaxy generator: sector positions are scattered over a disk and
// layered simplex noise sampled at each position gives the sector its
// wealth, stability, corruption, and industry.
package galaxy

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/starmarket/internal/economy"
)

// GenConfig holds sector seeding parameters.
type GenConfig struct {
	Seed            uint64   // Same seed, same galaxy
	Sectors         int      // Number of populated sectors
	Radius          float64  // Galaxy disk radius in light-years
	RouteDistance   float64  // Sectors closer than this are linked by a trade route
	Specializations []string // Names from the specialization tables
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Seed:          42,
		Sectors:       12,
		Radius:        100,
		RouteDistance: 45,
	}
}

// Sector is a seeded sector: its economy parameters and position.
type Sector struct {
	Params economy.SectorParams
	X, Y   float64
}

// SeedSectors generates cfg.Sectors sectors with IDs starting at 1.
func SeedSectors(cfg GenConfig) []Sector {
	if cfg.Sectors <= 0 {
		return nil
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+400))

	// Independent noise layers.
	seed := int64(cfg.Seed)
	wealthNoise := opensimplex.NewNormalized(seed)
	stabilityNoise := opensimplex.NewNormalized(seed + 1)
	corruptionNoise := opensimplex.NewNormalized(seed + 2)
	industryNoise := opensimplex.NewNormalized(seed + 3)

	specs := append([]string(nil), cfg.Specializations...)
	sort.Strings(specs)
	names := generateNames(rng, cfg.Sectors)

	sectors := make([]Sector, 0, cfg.Sectors)
	for i := 0; i < cfg.Sectors; i++ {
		// Uniform over the disk.
		r := cfg.Radius * math.Sqrt(rng.Float64())
		theta := rng.Float64() * 2 * math.Pi
		x, y := r*math.Cos(theta), r*math.Sin(theta)

		wealth := octaveNoise(wealthNoise, x, y, 4, 0.02, 0.5)
		stability := octaveNoise(stabilityNoise, x, y, 3, 0.03, 0.5)
		corruption := octaveNoise(corruptionNoise, x, y, 3, 0.03, 0.5)
		industry := octaveNoise(industryNoise, x, y, 3, 0.025, 0.5)

		// The core is richer and more orderly than the rim.
		core := 1 - r/cfg.Radius
		p := economy.SectorParams{
			ID:                 economy.SectorID(i + 1),
			Name:               names[i],
			WealthLevel:        0.3 + wealth*1.8 + core*0.6,
			Population:         uint64(1e6 + industry*wealth*5e9),
			IndustrialCapacity: industry * 100,
			Specializations:    pickSpecializations(rng, specs),
			Stability:          min(stability*0.7+core*0.3, 1),
			Corruption:         corruption * (1 - core*0.5),
		}
		sectors = append(sectors, Sector{Params: p, X: x, Y: y})
	}

	linkRoutes(sectors, cfg.RouteDistance)
	return sectors
}

// Params returns the economy parameters of every seeded sector.
func Params(sectors []Sector) []economy.SectorParams {
	out := make([]economy.SectorParams, 0, len(sectors))
	for _, s := range sectors {
		out = append(out, s.Params)
	}
	return out
}

// linkRoutes connects every pair closer than maxDist. A sector left isolated
// is linked to its nearest neighbour.
func linkRoutes(sectors []Sector, maxDist float64) {
	for i := range sectors {
		nearest, best := -1, math.Inf(1)
		for j := range sectors {
			if i == j {
				continue
			}
			d := math.Hypot(sectors[i].X-sectors[j].X, sectors[i].Y-sectors[j].Y)
			if d <= maxDist {
				link(sectors, i, j)
			}
			if d < best {
				nearest, best = j, d
			}
		}
		if len(sectors[i].Params.TradeRoutes) == 0 && nearest >= 0 {
			link(sectors, i, nearest)
		}
	}
	for i := range sectors {
		routes := sectors[i].Params.TradeRoutes
		sort.Slice(routes, func(a, b int) bool { return routes[a] < routes[b] })
	}
}

func link(sectors []Sector, i, j int) {
	a, b := &sectors[i].Params, &sectors[j].Params
	if !containsID(a.TradeRoutes, b.ID) {
		a.TradeRoutes = append(a.TradeRoutes, b.ID)
	}
	if !containsID(b.TradeRoutes, a.ID) {
		b.TradeRoutes = append(b.TradeRoutes, a.ID)
	}
}

func containsID(ids []economy.SectorID, id economy.SectorID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// pickSpecializations draws one or two distinct specializations.
func pickSpecializations(rng *rand.Rand, specs []string) []string {
	if len(specs) == 0 {
		return nil
	}
	first := specs[rng.IntN(len(specs))]
	out := []string{first}
	if len(specs) > 1 && rng.Float64() < 0.4 {
		second := specs[rng.IntN(len(specs))]
		if second != first {
			out = append(out, second)
		}
	}
	return out
}

func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// generateNames produces procedural sector names by combining syllables.
func generateNames(rng *rand.Rand, count int) []string {
	prefixes := []string{
		"Vega", "Altair", "Orion", "Lyra", "Cygnus", "Draco", "Hydra",
		"Kepler", "Tau", "Sigma", "Rigel", "Deneb", "Sirius", "Castor",
		"Pollux", "Antares", "Mira", "Nova", "Helios", "Zeta",
	}
	suffixes := []string{
		"Reach", "Expanse", "Drift", "Cluster", "Verge", "Belt", "Nebula",
		"Gate", "Hollow", "Spur", "March", "Deep", "Crossing", "Frontier",
	}

	used := make(map[string]bool)
	names := make([]string, 0, count)

	for attempts := 0; len(names) < count; attempts++ {
		name := prefixes[rng.IntN(len(prefixes))] + " " + suffixes[rng.IntN(len(suffixes))]
		if used[name] {
			if attempts < count*20 {
				continue
			}
			name = fmt.Sprintf("%s %d", name, len(names)+1)
		}
		used[name] = true
		names = append(names, name)
	}

	return names
}
