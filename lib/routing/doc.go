// Package routing holds the bounded route table used for duplicate
// suppression and reverse-path delivery of replies.
//
// The table is split in shards selected by an xxhash of the message
// identifier. Each shard is an insertion-ordered LRU guarded by its own mutex,
// so when a shard is full the entry seen longest ago is evicted first.
// Identifiers that leave the table, whether swept, replied or evicted, are
// remembered in a smaller per-shard "lost" set so that late replies can be
// told apart from replies that never had a route.
package routing
