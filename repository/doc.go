// Package repository executes composed filters against bun: searches with
// deterministic paging, existence checks and two-phase tracking reads that
// hydrate relations without multiplying root rows.
package repository
