// Package blog holds the domain model of the publishing engine: sites,
// topics, schedules, jobs and generated content, plus the store interfaces
// the pipeline and scheduler are written against.
package blog
