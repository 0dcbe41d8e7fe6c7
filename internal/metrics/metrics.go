package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	OrdersCreated       prometheus.Counter
	OrdersDeleted       prometheus.Counter
	StatusTransitions   prometheus.Counter
	OrdersSettled       prometheus.Counter
	ProductUnitsSettled prometheus.Counter
	CommissionPosted    prometheus.Counter
	TablesArchived      prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	created := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders created.",
	})
	deleted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_deleted_total",
		Help: "Orders deleted.",
	})
	transitions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Accepted order status transitions.",
	})
	settled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_settled_total",
		Help: "Whole orders confirmed as paid.",
	})
	units := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "product_units_settled_total",
		Help: "Individual product units confirmed as paid.",
	})
	commission := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "commission_posted_total",
		Help: "Commission amount posted to tenant bills.",
	})
	archived := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tables_archived_total",
		Help: "Tables archived after full settlement.",
	})

	r.MustRegister(created, deleted, transitions, settled, units, commission, archived)
	return &Registry{
		reg:                 r,
		OrdersCreated:       created,
		OrdersDeleted:       deleted,
		StatusTransitions:   transitions,
		OrdersSettled:       settled,
		ProductUnitsSettled: units,
		CommissionPosted:    commission,
		TablesArchived:      archived,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
