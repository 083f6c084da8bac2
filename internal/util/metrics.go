package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SalesRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_sales_recorded_total",
		Help: "Total number of sales recorded",
	})

	SalesRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_sales_rejected_total",
		Help: "Total number of rejected sales",
	}, []string{"reason"})

	UnitsSoldTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_units_sold_total",
		Help: "Total units deducted from batches by sales",
	})

	BatchesTouchedPerSale = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inventory_batches_touched_per_sale",
		Help:    "Number of batches a single sale deducted from",
		Buckets: []float64{1, 2, 3, 5, 8, 13},
	})

	SaleDeductionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inventory_sale_deduction_latency_seconds",
		Help:    "Latency of the FEFO deduction transaction",
		Buckets: prometheus.DefBuckets,
	})

	UnitsRestockedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_units_restocked_total",
		Help: "Total units added as new batches",
	}, []string{"source"})

	LowStockAlertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_low_stock_alerts_total",
		Help: "Total number of low stock alerts raised",
	})

	PurchaseOrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchase_orders_created_total",
		Help: "Total number of purchase orders created",
	})

	PurchaseOrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchase_order_transitions_total",
		Help: "Accepted purchase order status changes",
	}, []string{"from", "to"})

	PurchaseOrderTransitionsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchase_order_transitions_failed_total",
		Help: "Rejected or failed purchase order status changes",
	}, []string{"reason"})

	FulfillmentWarningsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchase_order_fulfillment_warnings_total",
		Help: "Delivered items skipped because no product mapping exists",
	})

	CacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_stock_cache_requests_total",
		Help: "Stock level cache lookups",
	}, []string{"result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
