// Package admission classifies decoded messages. Classify runs an ordered
// list of stages and the first stage to object decides the drop reason:
//
//  1. structural checks, already done by gnet.Decode
//  2. ttl and hop accounting
//  3. admission control: connection budget, kind quota, connection state,
//     global budget, shutdown
//  4. source policy: banned, hostile and shunned origins, banned targets,
//     spam and evil content
//  5. routing: duplicates, missing or lost reverse paths, OOB proxy conflicts
//  6. self and loop detection
//  7. kind-specific payload checks
//
// A message that passes every stage leaves a route entry behind before
// Classify returns.
package admission
