// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

// Package cluster implements density-based clustering of case locations
// (DBSCAN over great-circle distance).
package cluster

import (
	"fmt"
	"sort"

	"github.com/tomtom215/hotspot/internal/models"
)

// Noise labels a point that belongs to no cluster.
const Noise = -1

// PreviewLimit caps how many clusters are listed in a result preview.
const PreviewLimit = 5

// Point is one case location.
type Point struct {
	ID  string
	Lat float64
	Lng float64
}

// Params controls clustering. A point is a core point when at least
// MinPoints points, itself included, lie within EpsilonKm of it.
type Params struct {
	EpsilonKm float64
	MinPoints int
}

// Result holds one label per input point (a cluster number or Noise) and
// the member indices of each cluster, in discovery order.
type Result struct {
	Labels   []int
	Clusters [][]int
	Noise    int
}

// DBSCAN clusters points. Border points reachable from several clusters
// join the first one that reaches them.
func DBSCAN(points []Point, p Params) Result {
	const unvisited = -2

	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = unvisited
	}
	res := Result{Labels: labels}
	if len(points) == 0 {
		return res
	}

	g := newGrid(points, p.EpsilonKm)
	for i := range points {
		if labels[i] != unvisited {
			continue
		}
		seeds := g.within(i, p.EpsilonKm)
		if len(seeds) < p.MinPoints {
			labels[i] = Noise
			continue
		}

		id := len(res.Clusters)
		members := []int{i}
		labels[i] = id
		for q := 0; q < len(seeds); q++ {
			j := seeds[q]
			if labels[j] == Noise {
				labels[j] = id
				members = append(members, j)
				continue
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = id
			members = append(members, j)
			if more := g.within(j, p.EpsilonKm); len(more) >= p.MinPoints {
				seeds = append(seeds, more...)
			}
		}
		res.Clusters = append(res.Clusters, members)
	}

	for _, l := range labels {
		if l == Noise {
			res.Noise++
		}
	}
	return res
}

// Summary converts a result into the stored form. At most PreviewLimit
// clusters are listed, keyed cluster_0, cluster_1, ... with member ids in
// input order.
func Summary(points []Point, res Result, p Params) models.ClusterResults {
	out := models.ClusterResults{
		ClusterCount:        len(res.Clusters),
		NoiseCount:          res.Noise,
		TotalPointsAnalyzed: len(points),
		EpsilonKm:           p.EpsilonKm,
		MinPoints:           p.MinPoints,
	}
	out.PointsInClusters = out.TotalPointsAnalyzed - out.NoiseCount
	if len(res.Clusters) == 0 {
		return out
	}

	out.ClustersPreview = make(map[string][]string, min(len(res.Clusters), PreviewLimit))
	for c, members := range res.Clusters {
		if c >= PreviewLimit {
			break
		}
		idx := append([]int(nil), members...)
		sort.Ints(idx)
		ids := make([]string, len(idx))
		for k, m := range idx {
			ids[k] = points[m].ID
		}
		out.ClustersPreview[fmt.Sprintf("cluster_%d", c)] = ids
	}
	return out
}
