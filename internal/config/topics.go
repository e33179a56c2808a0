package config

const (
	// TopicGenerateTask is the NSQ topic for asynchronous question generation.
	TopicGenerateTask = "questions.generate"

	// ChannelGenerationWorker is the channel the generation worker consumes from.
	ChannelGenerationWorker = "generation-worker"
)
