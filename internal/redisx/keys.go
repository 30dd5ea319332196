package redisx

// DocKey namespaces a store document key: doc:{inventory_db} etc., so a
// shared Redis instance does not collide with other apps.
func DocKey(storeKey string) string { return "doc:" + storeKey }
