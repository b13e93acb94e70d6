// Package policy answers the source and content questions asked by admission:
// whether an address is banned, hostile or shunned, whether a servent
// identifier is banned, and whether a query or hit is spam or evil.
//
// Rules come from a YAML file:
//
//	banned:  ["198.51.100.0/24"]
//	hostile: ["203.0.113.66"]
//	shunned: ["192.0.2.0/28"]
//	banned_servents: ["0123456789abcdef0123456789abcdef"]
//	spam:
//	  sha1: ["urn:sha1:PLSTHIPQGSSZTS5FJUPAKUZWUGYQYPFB"]
//	  vendors: ["MRPH"]
//	  terms: ["free ringtones"]
//	evil:
//	  names: ["keygen.exe"]
//
// A Policy can be reloaded while in use; readers see either the old or the
// new rule set, never a mix.
package policy
