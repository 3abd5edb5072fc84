// Package health serves Saturn's /health endpoint.
//
// A Checker holds named dependency checks (the audit sink, the budget
// backend, the dead-letter store) and runs them concurrently on every
// request. Any failing check turns the report degraded and the response
// into a 503, so a load balancer stops routing to an instance whose
// enforcement path cannot work:
//
//	{
//	    "status": "degraded",
//	    "version": "0.3.0",
//	    "go_version": "go1.24.0",
//	    "checks": {
//	        "audit":  {"status": "ok", "duration_ms": 0.2},
//	        "budget": {"status": "unhealthy", "message": "dial tcp: connection refused", "duration_ms": 250.1}
//	    },
//	    "timestamp": "2026-01-10T10:30:00Z"
//	}
package health
