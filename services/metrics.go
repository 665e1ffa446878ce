package services

import "github.com/prometheus/client_golang/prometheus"

var (
	ingredientsAddedCounter prometheus.Counter
	recipesAddedCounter     prometheus.Counter
	writeFailuresCounter    *prometheus.CounterVec
	communityFetchCounter   *prometheus.CounterVec
)

func init() {
	ingredientsAddedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingredients_added_total",
			Help: "Total number of ingredients written to the local store.",
		},
	)
	recipesAddedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recipes_added_total",
			Help: "Total number of recipes written to the local store.",
		},
	)
	writeFailuresCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_write_failures_total",
			Help: "Asynchronous store writes that failed and were dropped.",
		},
		[]string{"operation"},
	)
	communityFetchCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "community_fetch_total",
			Help: "Community ingredient list fetches by outcome.",
		},
		[]string{"result"},
	)
	prometheus.MustRegister(ingredientsAddedCounter, recipesAddedCounter, writeFailuresCounter, communityFetchCounter)
}
