// Package session tracks per-counterparty conversation windows for a business
// messaging gateway with a 24-hour free-form rule.
//
// # Window Rule
//
// After a counterparty's most recent inbound message the business may send
// free-form messages for 24 hours. Outside that window only pre-approved
// template messages are allowed. Inbound messages always reset the clock;
// outbound messages never do.
//
// # State Machine
//
//	NONE --inbound--> CUSTOMER_INITIATED --(24h elapse)--> expired
//	CUSTOMER_INITIATED --inbound--> CUSTOMER_INITIATED (window reset)
//	expired --outbound--> BUSINESS_INITIATED
//	BUSINESS_INITIATED --inbound--> CUSTOMER_INITIATED
//
// "expired" is never stored; it is re-derived lazily from the stored
// timestamps on every Status call, which avoids clock-skew bugs between a
// background scheduler and callers.
//
// # Failure Policy
//
// Status fails closed: if the store cannot be read, the counterparty is
// treated as template-gated. Record operations return errors to the caller so
// the surrounding webhook retry machinery can act on them.
package session
