// Command mockapi serves a fake Vast.ai inventory API and, optionally, writes
// matching miner log files so rigwatch can run end to end without rentals.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type mockInstance struct {
	ID       int      `json:"id"`
	GPUName  *string  `json:"gpu_name"`
	NumGPUs  *int     `json:"num_gpus"`
	DPHTotal *float64 `json:"dph_total"`
	GPUUtil  *float64 `json:"gpu_util"`
	Label    *string  `json:"label"`
	Status   *string  `json:"actual_status"`
	SSHHost  string   `json:"ssh_host"`
	SSHPort  int      `json:"ssh_port"`

	hashPerGPU float64
	logStyle   string
}

type gpuProfile struct {
	name       string
	dph        float64
	hashPerGPU float64
}

var profiles = []gpuProfile{
	{"RTX 4090", 0.38, 3100},
	{"RTX 3090", 0.21, 1650},
	{"RTX A6000", 0.45, 1900},
	{"A100 PCIE", 0.95, 2600},
}

func ptr[T any](v T) *T { return &v }

// buildFleet returns a deterministic fleet for the given seed. Every seventh
// instance under-performs its class, one has no price and one is stopped.
func buildFleet(size int, seed int64) []*mockInstance {
	rng := rand.New(rand.NewSource(seed))
	fleet := make([]*mockInstance, 0, size)
	for i := 0; i < size; i++ {
		p := profiles[i%len(profiles)]
		gpus := []int{1, 2, 4, 8}[rng.Intn(4)]
		hash := p.hashPerGPU * (0.95 + rng.Float64()*0.1)
		if i%7 == 6 {
			hash *= 0.4
		}
		inst := &mockInstance{
			ID:         9_100_000 + i,
			GPUName:    ptr(p.name),
			NumGPUs:    ptr(gpus),
			DPHTotal:   ptr(math.Round(p.dph*float64(gpus)*1000) / 1000),
			GPUUtil:    ptr(math.Round(rng.Float64()*1000) / 10),
			Status:     ptr("running"),
			SSHHost:    fmt.Sprintf("ssh%d.vast.ai", 1+i%6),
			SSHPort:    20000 + i,
			hashPerGPU: hash,
			logStyle:   "normal",
		}
		if i%3 == 0 {
			inst.Label = ptr(fmt.Sprintf("rig-%02d", i))
		}
		switch i {
		case 4:
			inst.DPHTotal = nil
		case 5:
			inst.Status = ptr("exited")
			inst.logStyle = "garbage"
		case 8:
			inst.logStyle = "xuni"
		}
		fleet = append(fleet, inst)
	}
	return fleet
}

// progressLine renders a miner progress line with ANSI color, as the miner
// writes it to its log.
func progressLine(inst *mockInstance, elapsed time.Duration, difficulty int) string {
	if inst.logStyle == "garbage" {
		return "Traceback (most recent call last): CUDA error: out of memory"
	}
	h := int(elapsed.Hours())
	m := int(elapsed.Minutes()) % 60
	s := int(elapsed.Seconds()) % 60
	hash := inst.hashPerGPU * float64(*inst.NumGPUs)
	blocks := int(hash * elapsed.Hours() / 900)
	details := fmt.Sprintf("super:0 normal:%d", blocks)
	if inst.logStyle == "xuni" {
		details = fmt.Sprintf("xuni:%d", blocks/3)
	}
	return fmt.Sprintf("\x1b[32mMining: %d Blocks [%d:%02d:%02d, %.2f Blocks/s, Details=%s, HashRate:%.2f, Difficulty=%d]\x1b[0m",
		blocks, h, m, s, float64(blocks)/math.Max(elapsed.Seconds(), 1), details, hash, difficulty)
}

func writeLogs(dir string, fleet []*mockInstance, started time.Time, difficulty int) error {
	elapsed := time.Since(started) + 3*time.Hour
	for _, inst := range fleet {
		path := filepath.Join(dir, fmt.Sprintf("%d.log", inst.ID))
		line := progressLine(inst, elapsed, difficulty) + "\n"
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		_, err = f.WriteString(line)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func main() {
	port := flag.Int("port", 8090, "Mock API port")
	size := flag.Int("instances", 12, "Number of instances in the fake fleet")
	seed := flag.Int64("seed", 42, "Seed for the fake fleet")
	credit := flag.Float64("credit", 250, "Account credit in USD")
	logDir := flag.String("log-dir", "", "Write <id>.log miner logs here for the file fetcher")
	difficulty := flag.Int("difficulty", 72000, "Difficulty reported in miner logs")
	flag.Parse()

	fleet := buildFleet(*size, *seed)
	started := time.Now()

	if *logDir != "" {
		if err := os.MkdirAll(*logDir, 0o755); err != nil {
			log.Fatalf("creating log dir: %v", err)
		}
		if err := writeLogs(*logDir, fleet, started, *difficulty); err != nil {
			log.Fatalf("writing logs: %v", err)
		}
		go func() {
			for range time.Tick(time.Minute) {
				if err := writeLogs(*logDir, fleet, started, *difficulty); err != nil {
					log.Printf("writing logs: %v", err)
				}
			}
		}()
	}

	var mu sync.Mutex
	balance := *credit
	lastCharge := time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v0/", authed(func(w http.ResponseWriter, r *http.Request) {
		switch strings.TrimPrefix(r.URL.Path, "/api/v0") {
		case "/":
			writeJSON(w, map[string]any{"success": true})
		case "/instances/":
			writeJSON(w, map[string]any{"instances": fleet})
		case "/users/current/":
			mu.Lock()
			// Running instances bill continuously.
			hours := time.Since(lastCharge).Hours()
			for _, inst := range fleet {
				if inst.DPHTotal != nil && *inst.Status == "running" {
					balance -= *inst.DPHTotal * hours
				}
			}
			lastCharge = time.Now()
			cur := math.Round(balance*100) / 100
			mu.Unlock()
			writeJSON(w, map[string]any{"id": 1, "email": "miner@example.com", "credit": cur})
		default:
			http.NotFound(w, r)
		}
	}))

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("Mock Vast.ai API listening on %s (%d instances)", addr, len(fleet))
	log.Fatal(http.ListenAndServe(addr, mux))
}

func authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			http.Error(w, `{"error":"missing api key"}`, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
