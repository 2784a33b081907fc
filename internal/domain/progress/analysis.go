package progress

import (
	"sort"
)

// Topic mastery thresholds on the mean event score.
const (
	StrongTopicAbove = 80.0
	WeakTopicBelow   = 60.0
)

// TopicStat is the per-topic score summary.
type TopicStat struct {
	Topic    string  `json:"topic"`
	Events   int     `json:"events"`
	AvgScore float64 `json:"avg_score"`
}

// TopicAnalysis splits topics into strong and weak areas.
type TopicAnalysis struct {
	StrongTopics []string    `json:"strong_topics"`
	WeakTopics   []string    `json:"weak_topics"`
	Topics       []TopicStat `json:"topics"`
}

// AnalyzeTopics groups events by topic. Topics are sorted by name.
func AnalyzeTopics(events []LearningEvent) TopicAnalysis {
	type acc struct{ n, sum int }
	byTopic := make(map[string]*acc)
	for _, e := range events {
		a, ok := byTopic[e.Topic]
		if !ok {
			a = &acc{}
			byTopic[e.Topic] = a
		}
		a.n++
		a.sum += e.Score
	}

	names := make([]string, 0, len(byTopic))
	for name := range byTopic {
		names = append(names, name)
	}
	sort.Strings(names)

	result := TopicAnalysis{
		StrongTopics: []string{},
		WeakTopics:   []string{},
		Topics:       make([]TopicStat, 0, len(names)),
	}
	for _, name := range names {
		a := byTopic[name]
		avg := float64(a.sum) / float64(a.n)
		result.Topics = append(result.Topics, TopicStat{Topic: name, Events: a.n, AvgScore: roundTenth(avg)})

		switch {
		case avg > StrongTopicAbove:
			result.StrongTopics = append(result.StrongTopics, name)
		case avg < WeakTopicBelow:
			result.WeakTopics = append(result.WeakTopics, name)
		}
	}
	return result
}

// KindCount is the number of events of one activity kind.
type KindCount struct {
	Kind  ActivityKind `json:"activity_type"`
	Count int          `json:"count"`
}

// ActivityDistribution counts events per kind, omitting kinds with no events.
func ActivityDistribution(events []LearningEvent) []KindCount {
	counts := make(map[ActivityKind]int)
	for _, e := range events {
		counts[e.Kind]++
	}

	dist := make([]KindCount, 0, len(counts))
	for _, k := range AllKinds() {
		if n := counts[k]; n > 0 {
			dist = append(dist, KindCount{Kind: k, Count: n})
		}
	}
	return dist
}
