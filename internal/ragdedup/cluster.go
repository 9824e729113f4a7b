package ragdedup

import "ragcore/internal/ragdomain"

// candidatePair is one entity paired with the similarity score that matched it
// against some other entity, kept for cluster reporting.
type candidatePair struct {
	entity ragdomain.Entity
	score  float64
}

// findDuplicates returns, for every checked entity, its matched duplicates
// among all (the full comparison set), applying the similarity threshold
// and text-distance gate. checked may be a subset of all (an incremental
// scan); all is always the complete per-tenant, per-label entity set so
// new entities are compared against the full historical graph.
func findDuplicates(checked, all []ragdomain.Entity, topK int, similarityThreshold float64, maxDistance int) map[string][]candidatePair {
	out := make(map[string][]candidatePair)
	for _, e := range checked {
		if len(e.Embedding) == 0 {
			continue
		}
		var matches []candidatePair
		for _, other := range all {
			if other.EntityID == e.EntityID || len(other.Embedding) == 0 {
				continue
			}
			score := cosineSimilarity(e.Embedding, other.Embedding)
			if score < similarityThreshold {
				continue
			}
			if !textDistanceMatch(e.Name, other.Name, maxDistance) {
				continue
			}
			matches = append(matches, candidatePair{entity: other, score: score})
		}
		if len(matches) == 0 {
			continue
		}
		if len(matches) > topK {
			matches = topScored(matches, topK)
		}
		out[e.EntityID] = matches
	}
	return out
}

// topScored returns the k highest-scoring pairs, sorted descending.
func topScored(pairs []candidatePair, k int) []candidatePair {
	sorted := append([]candidatePair(nil), pairs...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].score > sorted[j-1].score; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	if len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}

// Cluster is one group of entities believed to be the same real-world
// entity, ready to merge into a single primary.
type Cluster struct {
	PrimaryID      string
	PrimaryName    string
	DuplicateIDs   []string
	DuplicateNames []string
	Scores         []float64
}

// buildClusters unions every checked entity with its matched duplicates
// (union-find keyed by EntityID), then collapses each union into one
// Cluster rooted at the lexicographically smallest member id — the Go
// analogue of the original's "apoc.coll.min(nodeIds)" ownership rule,
// adapted since this store has no integer internal node id to take a min
// over.
func buildClusters(byEntities []ragdomain.Entity, matches map[string][]candidatePair) []Cluster {
	uf := newUnionFind()
	byID := make(map[string]ragdomain.Entity, len(byEntities))
	for _, e := range byEntities {
		byID[e.EntityID] = e
		uf.add(e.EntityID)
	}
	scoreOf := make(map[[2]string]float64)
	for id, pairs := range matches {
		uf.add(id)
		for _, p := range pairs {
			uf.add(p.entity.EntityID)
			uf.union(id, p.entity.EntityID)
			byID[p.entity.EntityID] = p.entity
			scoreOf[[2]string{id, p.entity.EntityID}] = p.score
		}
	}

	groups := uf.groups()
	var clusters []Cluster
	for _, members := range groups {
		if len(members) < 2 {
			continue
		}
		sortStrings(members)
		primaryID := members[0]
		c := Cluster{PrimaryID: primaryID, PrimaryName: byID[primaryID].Name}
		for _, id := range members[1:] {
			c.DuplicateIDs = append(c.DuplicateIDs, id)
			c.DuplicateNames = append(c.DuplicateNames, byID[id].Name)
			score := scoreOf[[2]string{primaryID, id}]
			if score == 0 {
				score = scoreOf[[2]string{id, primaryID}]
			}
			c.Scores = append(c.Scores, score)
		}
		clusters = append(clusters, c)
	}
	return clusters
}

func sortStrings(ss []string) {
	for i := 1; i < len(ss); i++ {
		for j := i; j > 0 && ss[j] < ss[j-1]; j-- {
			ss[j], ss[j-1] = ss[j-1], ss[j]
		}
	}
}

// unionFind is a minimal disjoint-set over string keys.
type unionFind struct {
	parent map[string]string
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[string]string)}
}

func (u *unionFind) add(id string) {
	if _, ok := u.parent[id]; !ok {
		u.parent[id] = id
	}
}

func (u *unionFind) find(id string) string {
	for u.parent[id] != id {
		u.parent[id] = u.parent[u.parent[id]]
		id = u.parent[id]
	}
	return id
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}

func (u *unionFind) groups() map[string][]string {
	out := make(map[string][]string)
	for id := range u.parent {
		root := u.find(id)
		out[root] = append(out[root], id)
	}
	return out
}
