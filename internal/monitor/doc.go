// Package monitor defines the types shared by the sale monitor pipeline:
// requests and trigger kinds, screenshots, classification results, email
// messages, run outcomes, and the interfaces implemented by the renderer,
// classifier, and notifier adapters.
package monitor
