package agenttype

// Presets returns the built-in agent type catalog registered at startup,
// grounded on the reference registry's default agent set (research, code,
// data, writer, planner, critic, executor, memory).
func Presets() []Type {
	return []Type{
		{
			ID:          "research_agent",
			Name:        "Research Agent",
			Description: "Conducts research and gathers information from external sources",
			Category:    CategoryResearch,
			Version:     "1.0.0",
			Tags:        []string{"research", "web", "data-gathering"},
			Capabilities: []Capability{
				{ID: "web_research", Name: "Web Research", Category: CategoryResearch, RequiredTools: []string{"web_search", "web_scraper"}},
				{ID: "data_synthesis", Name: "Data Synthesis", Category: CategoryResearch, RequiredTools: []string{"llm"}},
			},
		},
		{
			ID:          "code_agent",
			Name:        "Code Agent",
			Description: "Writes, reviews, and debugs code",
			Category:    CategoryCode,
			Version:     "1.0.0",
			Tags:        []string{"code", "programming", "development"},
			Capabilities: []Capability{
				{ID: "code_writing", Name: "Code Writing", Category: CategoryCode, RequiredTools: []string{"llm", "code_interpreter"}},
				{ID: "code_review", Name: "Code Review", Category: CategoryCode, RequiredTools: []string{"llm", "static_analyzer"}},
				{ID: "debugging", Name: "Debugging", Category: CategoryCode, RequiredTools: []string{"llm", "code_interpreter", "debugger"}},
			},
		},
		{
			ID:          "data_agent",
			Name:        "Data Agent",
			Description: "Analyzes datasets and produces visualizations",
			Category:    CategoryData,
			Version:     "1.0.0",
			Tags:        []string{"data", "analytics", "visualization"},
			Capabilities: []Capability{
				{ID: "data_analysis", Name: "Data Analysis", Category: CategoryData, RequiredTools: []string{"llm", "data_analyzer"}},
				{ID: "visualization", Name: "Data Visualization", Category: CategoryData, RequiredTools: []string{"visualization_tool"}},
			},
		},
		{
			ID:          "writer_agent",
			Name:        "Writer Agent",
			Description: "Creates and edits written content",
			Category:    CategoryWriting,
			Version:     "1.0.0",
			Tags:        []string{"writing", "content", "editing"},
			Capabilities: []Capability{
				{ID: "content_writing", Name: "Content Writing", Category: CategoryWriting, RequiredTools: []string{"llm"}},
				{ID: "editing", Name: "Content Editing", Category: CategoryWriting, RequiredTools: []string{"llm"}},
			},
		},
		{
			ID:          "planner_agent",
			Name:        "Planner Agent",
			Description: "Breaks down complex tasks and schedules work",
			Category:    CategoryPlanning,
			Version:     "1.0.0",
			Tags:        []string{"planning", "scheduling", "coordination"},
			Capabilities: []Capability{
				{ID: "task_planning", Name: "Task Planning", Category: CategoryPlanning, RequiredTools: []string{"llm"}},
				{ID: "scheduling", Name: "Scheduling", Category: CategoryPlanning, RequiredTools: []string{"llm"}},
			},
		},
		{
			ID:          "critic_agent",
			Name:        "Critic Agent",
			Description: "Reviews and critiques other agents' work",
			Category:    CategoryCritique,
			Version:     "1.0.0",
			Tags:        []string{"review", "quality", "critique"},
			Capabilities: []Capability{
				{ID: "output_review", Name: "Output Review", Category: CategoryCritique, RequiredTools: []string{"llm"}},
				{ID: "quality_check", Name: "Quality Check", Category: CategoryCritique, RequiredTools: []string{"llm"}},
			},
		},
		{
			ID:          "executor_agent",
			Name:        "Executor Agent",
			Description: "Executes commands and calls external APIs",
			Category:    CategoryExecution,
			Version:     "1.0.0",
			Tags:        []string{"execution", "automation", "integration"},
			Capabilities: []Capability{
				{ID: "command_execution", Name: "Command Execution", Category: CategoryExecution, RequiredTools: []string{"shell", "sandbox"}},
				{ID: "api_calls", Name: "API Calls", Category: CategoryExecution, RequiredTools: []string{"http_client"}},
			},
		},
		{
			ID:          "memory_agent",
			Name:        "Memory Agent",
			Description: "Manages long-term memory and conversational context",
			Category:    CategoryMemory,
			Version:     "1.0.0",
			Tags:        []string{"memory", "context", "knowledge"},
			Capabilities: []Capability{
				{ID: "context_storage", Name: "Context Storage", Category: CategoryMemory, RequiredTools: []string{"vector_db"}},
				{ID: "knowledge_retrieval", Name: "Knowledge Retrieval", Category: CategoryMemory, RequiredTools: []string{"vector_db", "llm"}},
			},
		},
	}
}
