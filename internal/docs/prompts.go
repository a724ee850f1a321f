package docs

import "fmt"

func structurePrompt(listing string) string {
	return fmt.Sprintf(`You are an expert technical writer and software architect. Here is the file and folder structure of a software project:

%s

Give a high-level architectural overview of how the folders and files relate to each other, aimed at a junior developer who needs to understand how the project is organised. Include a diagram (ASCII or Mermaid) of the architecture. Be concise and explicit. Do not use meta language; output only the overview and the diagram.`, listing)
}

func finalPrompt(summaries string) string {
	return fmt.Sprintf(`You are an expert technical writer, software architect, and educator. Write the best possible documentation for this software project for junior developers and newcomers.

Below are the project structure overview and summaries of key files. Combine them into complete, beginner-friendly documentation that explains the architecture, file relationships, technology stack, developer flow, and learning tips. Use diagrams, Markdown formatting, and a welcoming tone.

%s

Now write the final documentation.`, summaries)
}

func placeholder(path string) string {
	return "No summary available for " + path
}

func omittedNote(omitted []string, _ int) string {
	return fmt.Sprintf("\n--- Some file summaries omitted due to size limits (%d omitted). ---\n", len(omitted))
}
