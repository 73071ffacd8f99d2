package engine

import (
	"strings"

	"github.com/abhisek/attune/internal/mastery"
)

// GeneralTopic is used for content that matches no known topic.
const GeneralTopic = "general"

type topicKeywords struct {
	topic    string
	keywords []string
}

// topicTable is checked in order; the first keyword found wins.
var topicTable = []topicKeywords{
	{"linear_regression", []string{"linear regression", "least squares", "y = mx + b", "slope", "intercept"}},
	{"gradient_descent", []string{"gradient descent", "learning rate", "gradient", "optimization", "convergence"}},
	{"neural_network", []string{"neural network", "neural net", "hidden layer", "activation function", "backpropagation"}},
	{"regularization", []string{"regularization", "l1", "l2", "lasso", "ridge", "overfitting"}},
	{"probability", []string{"probability", "bayes", "distribution", "likelihood", "prior", "posterior"}},
	{"calculus", []string{"derivative", "integral", "differentiation", "limit", "chain rule"}},
	{"linear_algebra", []string{"matrix", "vector", "eigenvalue", "determinant", "linear transformation"}},
	{"statistics", []string{"mean", "variance", "standard deviation", "hypothesis test", "p-value"}},
	{"classification", []string{"classification", "logistic regression", "decision boundary", "softmax"}},
	{"clustering", []string{"clustering", "k-means", "centroid", "unsupervised"}},
}

// InferTopic guesses a topic from screen text. Empty text has no topic;
// text matching nothing is GeneralTopic.
func InferTopic(screen string) string {
	if strings.TrimSpace(screen) == "" {
		return ""
	}
	lower := strings.ToLower(screen)
	for _, t := range topicTable {
		for _, kw := range t.keywords {
			if strings.Contains(lower, kw) {
				return t.topic
			}
		}
	}
	return GeneralTopic
}

// resolveTopic prefers the topic supplied with the snapshot.
func resolveTopic(detected, screen string) string {
	if id := mastery.NormalizeConceptID(detected); id != "" {
		return id
	}
	return InferTopic(screen)
}
