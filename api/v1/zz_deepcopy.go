/*
Copyright The MySQL Operator Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package v1

import (
	"k8s.io/apimachinery/pkg/runtime"
)

// DeepCopyInto copies the receiver into out. Hand-written in place of a
// controller-gen run (this module's toolchain is never invoked as part of
// this exercise).

func (in *InitDBCloneSource) DeepCopyInto(out *InitDBCloneSource) {
	*out = *in
}

func (in *InitDBCloneSource) DeepCopy() *InitDBCloneSource {
	if in == nil {
		return nil
	}
	out := new(InitDBCloneSource)
	in.DeepCopyInto(out)
	return out
}

func (in *InitDBSpec) DeepCopyInto(out *InitDBSpec) {
	*out = *in
	if in.Clone != nil {
		out.Clone = in.Clone.DeepCopy()
	}
}

func (in *InitDBSpec) DeepCopy() *InitDBSpec {
	if in == nil {
		return nil
	}
	out := new(InitDBSpec)
	in.DeepCopyInto(out)
	return out
}

func (in *ClusterSpec) DeepCopyInto(out *ClusterSpec) {
	*out = *in
	if in.InitDB != nil {
		out.InitDB = in.InitDB.DeepCopy()
	}
	if in.Configuration != nil {
		out.Configuration = make(map[string]string, len(in.Configuration))
		for k, v := range in.Configuration {
			out.Configuration[k] = v
		}
	}
}

func (in *ClusterSpec) DeepCopy() *ClusterSpec {
	if in == nil {
		return nil
	}
	out := new(ClusterSpec)
	in.DeepCopyInto(out)
	return out
}

func (in *ClusterStatus) DeepCopyInto(out *ClusterStatus) {
	*out = *in
	if in.LastProbeTime != nil {
		t := in.LastProbeTime.DeepCopy()
		out.LastProbeTime = &t
	}
	if in.CreateTime != nil {
		t := in.CreateTime.DeepCopy()
		out.CreateTime = &t
	}
}

func (in *ClusterStatus) DeepCopy() *ClusterStatus {
	if in == nil {
		return nil
	}
	out := new(ClusterStatus)
	in.DeepCopyInto(out)
	return out
}

func (in *Cluster) DeepCopyInto(out *Cluster) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	in.Spec.DeepCopyInto(&out.Spec)
	in.Status.DeepCopyInto(&out.Status)
}

func (in *Cluster) DeepCopy() *Cluster {
	if in == nil {
		return nil
	}
	out := new(Cluster)
	in.DeepCopyInto(out)
	return out
}

func (in *Cluster) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

func (in *ClusterList) DeepCopyInto(out *ClusterList) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]Cluster, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
}

func (in *ClusterList) DeepCopy() *ClusterList {
	if in == nil {
		return nil
	}
	out := new(ClusterList)
	in.DeepCopyInto(out)
	return out
}

func (in *ClusterList) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}
