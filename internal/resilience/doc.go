// Package resilience groups the fault-tolerance building blocks wrapped
// around every outbound call of the pipeline: circuit breakers for the
// source platform and the scoring services, and the retry discipline built
// on the pipeline's error taxonomy.
//
// Usage:
//
//	breaker := circuitbreaker.ForPages()
//	record, err := circuitbreaker.Call(breaker, func() (*entity.DetailRecord, error) {
//	    return fetchPage(ctx, url)
//	})
//
//	err := retry.Do(ctx, retry.PagePolicy(), func() error {
//	    return performOperation()
//	})
package resilience
