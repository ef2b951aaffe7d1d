// Package bot implements the query pipeline that turns a user question
// into a grounded answer.
//
// A question flows through a fixed-order pipeline: HyDE expansion
// (fabricate a hypothetical answer document to use as the retrieval
// query), similarity retrieval over the document index, and answer
// synthesis with the retrieved chunks as context. A semantic cache of past
// question/answer pairs sits in front of the pipeline and short-circuits
// near-duplicate questions. Batches run under an admission-controlled
// semaphore with order-preserving results.
//
// Failure policy follows the degraded-behavior rule: retrieval failures
// degrade to an empty context (logged, not surfaced), cache failures
// degrade to a miss, while model invocation failures propagate to the
// caller as generation errors.
package bot
