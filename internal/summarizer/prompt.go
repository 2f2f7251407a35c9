package summarizer

import (
	"fmt"
	"strings"

	"github.com/iWorld-y/azure_radar/internal/model"
)

const categoryPromptTpl = `You are an expert Azure Solutions Architect tasked with providing a detailed analysis for a customer report.
Based ONLY on the following list of Azure resources and their **detailed properties** for the '%[1]s' category, provide an in-depth analysis (aim for 3-5 paragraphs, or more if the complexity warrants).

Your first paragraph should cover:
- A summary of this resource type as it is configured in the environment. The aim is to provide an overview of the deployment observed in the provided data.

The second paragraph should cover:
- Key resource properties and configurations that stand out (e.g., VM sizes, database SKUs, storage types, network configurations).
- Key configuration choices observed from the provided properties (e.g., redundancy levels, OS types, specific SKUs, enabled features like WAF on App Gateways, public access settings, HA modes).
- Any notable patterns or architectural insights you can infer from the data (e.g., consistency in naming or SKU selection suggesting different environments, distribution across regions, use of specific technologies for certain workloads).

The third paragraph should cover:
- Any potential security or compliance considerations based on the resource configurations (e.g., public IPs, lack of encryption, missing tags for governance).
- Any potential areas for optimization or improvement based on the resource configurations (e.g., underutilized resources, over-provisioned SKUs, lack of geo-redundancy).

Please note:
- Avoid generic statements and focus on specific observations based on the provided data.
- Important: DO NOT USE unclear language that makes you seem unclear, like "it appears" or "it seems" or "may be" or "from what I can see". Be direct and factual.
- Do not use language that expresses any uncertainty, like "potentially this" or "possibly that" or "suggesting" or "could be".
- Use technical language appropriate for an Azure expert audience.
- Synthesize the information into a coherent analysis.
- Dont say "your environment" or "your resources" or "your data". Use "the environment" or "the resources" or "the data".
- If the provided data is sparse, make the analysis concise and factual based on what's available.
- Avoid making generic recommendations unless they are direct, factual observations (e.g., "No geo-redundant storage was observed in this category based on the SKUs.").
- Attempt to make the analysis sound as though the architect is describing the environment to a customer, rather than just listing facts or observations.
- Please write in a confident tone, ignoring any disclaimers or hedging language. You are factual and direct. You are trying to explain the data to a customer who is not an Azure expert.
- Please minimise any reference to the AI model itself or the process of generating this analysis.

Detailed Resource Data for %[1]s:
%[2]s

In-depth Analysis:`

const executivePromptTpl = `You are an expert Azure Solutions Architect providing a high-level executive summary for a customer report.
Based ONLY on the following *individual AI-generated category summaries* provided below, synthesize an overall executive summary of the Azure environment.

The executive summary should:
- Be concise (2-3 paragraphs maximum) and high-level, suitable for a non-technical executive audience.
- Provide a brief overview of the key Azure resource categories observed in the environment.
- Highlight the most significant findings, key services deployed, important configurations, or critical observations (e.g., security concerns, optimization opportunities) that are evident from the combined category summaries.
- Maintain a confident, direct, and factual tone. Avoid hedging language (e.g., 'it seems', 'may be').
- Do not refer to the process of generating this summary or mention that it's based on other summaries. Present it as a direct overview.
- Do not invent any information not present in the provided category summaries.
- Focus on the bigger picture and avoid getting into very specific technical details that are already covered in the category sections.

Individual Category Summaries:
%s

Executive Summary:`

// CategoryPrompt 单个类别的分析提示词
func CategoryPrompt(category, resourceText string) string {
	return fmt.Sprintf(categoryPromptTpl, category, resourceText)
}

// ExecutivePrompt 汇总提示词，combined 为各类别摘要的拼接
func ExecutivePrompt(combined string) string {
	return fmt.Sprintf(executivePromptTpl, combined)
}

// combineSummaries 拼接除错误和跳过之外的类别摘要（拦截说明保留），保持传入顺序
func combineSummaries(outcomes []model.CategoryOutcome) string {
	var sb strings.Builder
	for _, o := range outcomes {
		if o.Summary.Kind == model.SummaryError || o.Summary.Kind == model.SummarySkipped {
			continue
		}
		fmt.Fprintf(&sb, "## %s\n%s\n\n", o.CategoryName, o.Summary.Text)
	}
	return sb.String()
}
