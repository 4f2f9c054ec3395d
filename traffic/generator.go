// Package traffic produces the transactions masters submit to a fabric, either
// from a fixed schedule or from a seeded random process.
package traffic

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/example/bus_fabric_sim/core"
)

// Generator yields the transactions master wants to issue at cycle.
type Generator interface {
	Generate(cycle int, master int) []core.Transaction
	// Reset restores the initial state (called on fabric reset).
	Reset()
}

// ParseDirection maps "read"/"r" and "write"/"w" to a Direction.
func ParseDirection(s string) (core.Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "read", "r", "":
		return core.Read, nil
	case "write", "w":
		return core.Write, nil
	default:
		return core.Read, fmt.Errorf("unknown direction %q", s)
	}
}

// ScheduleItem is one scheduled transaction.
type ScheduleItem struct {
	Cycle  int    `yaml:"cycle" json:"cycle" mapstructure:"cycle"`
	Master int    `yaml:"master" json:"master" mapstructure:"master"`
	ID     uint32 `yaml:"id" json:"id" mapstructure:"id"`
	Dir    string `yaml:"dir" json:"dir" mapstructure:"dir"`
	Addr   uint64 `yaml:"addr" json:"addr" mapstructure:"addr"`
	Data   uint64 `yaml:"data" json:"data" mapstructure:"data"`
}

// Transaction converts the item.
func (it ScheduleItem) Transaction() (core.Transaction, error) {
	dir, err := ParseDirection(it.Dir)
	if err != nil {
		return core.Transaction{}, err
	}
	if dir == core.Write {
		return core.NewWrite(it.ID, it.Addr, it.Data), nil
	}
	return core.NewRead(it.ID, it.Addr), nil
}

// Schedule replays a fixed list of transactions. Items are handed out once,
// in list order per (cycle, master).
type Schedule struct {
	original []ScheduleItem
	pending  map[int]map[int][]core.Transaction
}

// NewSchedule validates items and builds the schedule.
func NewSchedule(items []ScheduleItem) (*Schedule, error) {
	for i, it := range items {
		if it.Cycle < 0 || it.Master < 0 {
			return nil, fmt.Errorf("schedule item %d: negative cycle or master", i)
		}
		if _, err := it.Transaction(); err != nil {
			return nil, fmt.Errorf("schedule item %d: %w", i, err)
		}
	}
	s := &Schedule{original: append([]ScheduleItem(nil), items...)}
	s.Reset()
	return s, nil
}

func (s *Schedule) Generate(cycle int, master int) []core.Transaction {
	byMaster, ok := s.pending[cycle]
	if !ok {
		return nil
	}
	out := byMaster[master]
	delete(byMaster, master)
	if len(byMaster) == 0 {
		delete(s.pending, cycle)
	}
	return out
}

// Remaining returns the number of items not yet handed out.
func (s *Schedule) Remaining() int {
	n := 0
	for _, byMaster := range s.pending {
		for _, txns := range byMaster {
			n += len(txns)
		}
	}
	return n
}

// LastCycle returns the latest scheduled cycle, or -1 for an empty schedule.
func (s *Schedule) LastCycle() int {
	last := -1
	for _, it := range s.original {
		if it.Cycle > last {
			last = it.Cycle
		}
	}
	return last
}

func (s *Schedule) Reset() {
	s.pending = make(map[int]map[int][]core.Transaction)
	for _, it := range s.original {
		txn, _ := it.Transaction()
		if s.pending[it.Cycle] == nil {
			s.pending[it.Cycle] = make(map[int][]core.Transaction)
		}
		s.pending[it.Cycle][it.Master] = append(s.pending[it.Cycle][it.Master], txn)
	}
}

// Window is an address range random traffic may target.
type Window struct {
	Base   uint64 `yaml:"base" json:"base" mapstructure:"base"`
	Size   uint64 `yaml:"size" json:"size" mapstructure:"size"`
	Weight int    `yaml:"weight" json:"weight" mapstructure:"weight"`
}

// RandomConfig parameterizes Random.
type RandomConfig struct {
	Seed int64 `yaml:"seed" json:"seed" mapstructure:"seed"`
	// Rate is the per-master probability of issuing in a cycle.
	Rate      float64  `yaml:"rate" json:"rate" mapstructure:"rate"`
	ReadRatio float64  `yaml:"read_ratio" json:"readRatio" mapstructure:"read_ratio"`
	Windows   []Window `yaml:"windows" json:"windows" mapstructure:"windows"`
}

// Random issues word-aligned reads and writes at a fixed rate. IDs carry the
// master index in their top byte so masters never collide on an id.
type Random struct {
	cfg    RandomConfig
	rng    *rand.Rand
	nextID map[int]uint32
	total  int
}

// NewRandom validates cfg and creates the generator.
func NewRandom(cfg RandomConfig) (*Random, error) {
	if cfg.Rate < 0 || cfg.Rate > 1 {
		return nil, fmt.Errorf("rate must be within [0,1], got %.3f", cfg.Rate)
	}
	if cfg.ReadRatio < 0 || cfg.ReadRatio > 1 {
		return nil, fmt.Errorf("read_ratio must be within [0,1], got %.3f", cfg.ReadRatio)
	}
	if len(cfg.Windows) == 0 {
		return nil, fmt.Errorf("at least one address window is required")
	}
	cfg.Windows = append([]Window(nil), cfg.Windows...)
	total := 0
	for i := range cfg.Windows {
		w := &cfg.Windows[i]
		if w.Size < core.WordSize {
			return nil, fmt.Errorf("window %d: size %d is smaller than a word", i, w.Size)
		}
		if w.Weight <= 0 {
			w.Weight = 1
		}
		total += w.Weight
	}
	r := &Random{cfg: cfg, total: total}
	r.Reset()
	return r, nil
}

func (r *Random) Generate(_ int, master int) []core.Transaction {
	if r.rng.Float64() >= r.cfg.Rate {
		return nil
	}
	w := r.pickWindow()
	addr := w.Base + uint64(r.rng.Int63n(int64(w.Size/core.WordSize)))*core.WordSize
	seq := r.nextID[master]
	r.nextID[master] = (seq + 1) & 0xFFFFFF
	id := uint32(master&0xFF)<<24 | seq
	if r.rng.Float64() < r.cfg.ReadRatio {
		return []core.Transaction{core.NewRead(id, addr)}
	}
	return []core.Transaction{core.NewWrite(id, addr, uint64(r.rng.Uint32()))}
}

func (r *Random) Reset() {
	r.rng = rand.New(rand.NewSource(r.cfg.Seed))
	r.nextID = make(map[int]uint32)
}

func (r *Random) pickWindow() Window {
	n := r.rng.Intn(r.total)
	for _, w := range r.cfg.Windows {
		if n < w.Weight {
			return w
		}
		n -= w.Weight
	}
	return r.cfg.Windows[len(r.cfg.Windows)-1]
}

// Masters returns the sorted master indexes present in items.
func Masters(items []ScheduleItem) []int {
	seen := map[int]bool{}
	var out []int
	for _, it := range items {
		if !seen[it.Master] {
			seen[it.Master] = true
			out = append(out, it.Master)
		}
	}
	sort.Ints(out)
	return out
}
