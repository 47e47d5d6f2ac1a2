package main

import (
	"encoding/json"
	"log"
	"math"
	"math/rand"
	"net/http"
)

type sample struct {
	Order   []string             `json:"order"`
	Columns map[string][]float64 `json:"columns"`
}

var featureOrder = []string{
	"amount", "amount_log", "hour_of_day", "hour_sin", "hour_cos", "day_of_week",
	"customer_tenure_days", "avg_monthly_spend", "num_prev_tx_24h", "cust_prev_amount_mean",
}

func synthSample(rng *rand.Rand, rows int, amountShift float64) sample {
	s := sample{Order: featureOrder, Columns: make(map[string][]float64, len(featureOrder))}
	for i := 0; i < rows; i++ {
		amount := math.Max(0.5, rng.NormFloat64()*60+150+amountShift)
		hour := float64(rng.Intn(24))
		s.Columns["amount"] = append(s.Columns["amount"], amount)
		s.Columns["amount_log"] = append(s.Columns["amount_log"], math.Log(amount+1))
		s.Columns["hour_of_day"] = append(s.Columns["hour_of_day"], hour)
		s.Columns["hour_sin"] = append(s.Columns["hour_sin"], math.Sin(2*math.Pi*hour/24))
		s.Columns["hour_cos"] = append(s.Columns["hour_cos"], math.Cos(2*math.Pi*hour/24))
		s.Columns["day_of_week"] = append(s.Columns["day_of_week"], float64(rng.Intn(7)))
		s.Columns["customer_tenure_days"] = append(s.Columns["customer_tenure_days"], float64(rng.Intn(5000)+1))
		s.Columns["avg_monthly_spend"] = append(s.Columns["avg_monthly_spend"], math.Max(5, rng.NormFloat64()*120+400))
		s.Columns["num_prev_tx_24h"] = append(s.Columns["num_prev_tx_24h"], float64(rng.Intn(6)))
		s.Columns["cust_prev_amount_mean"] = append(s.Columns["cust_prev_amount_mean"], math.Max(0, rng.NormFloat64()*50+140))
	}
	return s
}

func main() {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/features/baseline", func(w http.ResponseWriter, r *http.Request) {
		rng := rand.New(rand.NewSource(42))
		writeJSON(w, synthSample(rng, 500, 0))
	})

	// The current window carries a deliberate amount shift so local runs light up.
	mux.HandleFunc("/api/v1/features/window", func(w http.ResponseWriter, r *http.Request) {
		rng := rand.New(rand.NewSource(7))
		writeJSON(w, synthSample(rng, 300, 220))
	})

	log.Println("mock feature service listening on :9085")
	if err := http.ListenAndServe(":9085", mux); err != nil {
		log.Fatal(err)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}
