package service

// ToolInfo describes one tool for the help catalog.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Catalog lists every tool the dispatcher exposes.
func Catalog() []ToolInfo {
	return []ToolInfo{
		{"crawl_url", "Fetch a page and return its cleaned markdown without storing it"},
		{"crawl_and_remember", "Fetch a page and store it permanently in the knowledge base"},
		{"crawl_temp", "Fetch a page and store it only for the current session"},
		{"deep_crawl_dfs", "Walk linked pages depth-first from a start URL and report what was found"},
		{"deep_crawl_and_store", "Walk linked pages depth-first and store every reachable page"},
		{"search_memory", "Semantic search over stored content"},
		{"target_search", "Two-pass search that expands the query with tags discovered in first-pass hits"},
		{"list_memory", "List stored pages, optionally filtered by retention policy"},
		{"forget_url", "Delete one stored URL and all derived data"},
		{"clear_temp_memory", "Delete every session-only page of the current session"},
		{"get_database_stats", "Store counters, sync health, and latency aggregates"},
		{"list_domains", "Stored page counts per domain"},
		{"block_domain", "Add a blocklist pattern (suffix, keyword, or exact host)"},
		{"unblock_domain", "Remove a blocklist pattern (requires the removal token)"},
		{"list_blocked_domains", "List blocklist patterns"},
	}
}
